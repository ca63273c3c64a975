package tickers

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/aristath/pricesentry/internal/domain"
)

// csvTicker is one row of the universe sheet export
type csvTicker struct {
	Ticker    string `csv:"ticker"`
	Name      string `csv:"name"`
	Category  string `csv:"category"`
	Sentiment string `csv:"sentiment"`
	BuyTrade  string `csv:"buy_trade"`
	SellTrade string `csv:"sell_trade"`
}

// ReadCSV parses a ticker sheet with the header
// ticker,name,category,sentiment,buy_trade,sell_trade. Blank thresholds are
// allowed for neutral rows. Row numbers in errors count the header as row 1.
func ReadCSV(r io.Reader) ([]domain.Ticker, error) {
	var rows []*csvTicker
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to read tickers CSV: %w", err)
	}

	out := make([]domain.Ticker, 0, len(rows))
	for i, row := range rows {
		t, err := row.toTicker()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (row *csvTicker) toTicker() (domain.Ticker, error) {
	category, err := domain.ParseCategory(row.Category)
	if err != nil {
		return domain.Ticker{}, err
	}
	sentiment, err := domain.ParseSentiment(row.Sentiment)
	if err != nil {
		return domain.Ticker{}, err
	}
	buy, err := parseThreshold(row.BuyTrade)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("buy_trade: %w", err)
	}
	sell, err := parseThreshold(row.SellTrade)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("sell_trade: %w", err)
	}
	return domain.Ticker{
		Symbol:    normalizeSymbol(row.Ticker),
		Name:      strings.TrimSpace(row.Name),
		Category:  category,
		Sentiment: sentiment,
		BuyTrade:  buy,
		SellTrade: sell,
	}, nil
}

// parseThreshold accepts "170", "$170.00" and "1,250.5"
func parseThreshold(raw string) (*float64, error) {
	raw = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(raw))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Import upserts every ticker, stopping at the first invalid one
func (r *Repository) Import(ctx context.Context, list []domain.Ticker) (int, error) {
	n := 0
	for _, t := range list {
		if _, err := r.Upsert(ctx, t); err != nil {
			return n, err
		}
		n++
	}
	r.log.Info().Int("tickers", n).Msg("Tickers imported")
	return n, nil
}
