// Package tickers reads the tracked universe and writes the per-session price slots.
package tickers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/database"
	"github.com/aristath/pricesentry/internal/domain"
)

// tickerColumns in scan order
const tickerColumns = `id, symbol, name, category, sentiment, buy_trade, sell_trade,
am_price, pm_price, last_price_update`

// Repository handles ticker database operations
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a ticker repository over the main database
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "tickers").Logger(),
	}
}

// List returns every ticker ordered by category then symbol
func (r *Repository) List(ctx context.Context) ([]domain.Ticker, error) {
	return r.query(ctx, "SELECT "+tickerColumns+" FROM tickers ORDER BY category, symbol")
}

// ListByCategory returns the tickers of one category
func (r *Repository) ListByCategory(ctx context.Context, category domain.Category) ([]domain.Ticker, error) {
	return r.query(ctx, "SELECT "+tickerColumns+" FROM tickers WHERE category = ? ORDER BY symbol", string(category))
}

// Get returns one ticker, or nil if it is not tracked
func (r *Repository) Get(ctx context.Context, symbol string, category domain.Category) (*domain.Ticker, error) {
	list, err := r.query(ctx, "SELECT "+tickerColumns+" FROM tickers WHERE symbol = ? AND category = ?",
		normalizeSymbol(symbol), string(category))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// Upsert inserts or updates a ticker's descriptive fields and thresholds.
// Thresholds are normalized so buy_trade <= sell_trade. Price columns are untouched.
func (r *Repository) Upsert(ctx context.Context, t domain.Ticker) (int64, error) {
	t.Symbol = normalizeSymbol(t.Symbol)
	if t.Symbol == "" {
		return 0, errors.New("ticker symbol is required")
	}
	if _, err := domain.ParseCategory(string(t.Category)); err != nil {
		return 0, err
	}
	if t.Sentiment == "" {
		t.Sentiment = domain.SentimentNeutral
	}
	if t.Sentiment != domain.SentimentNeutral && (t.BuyTrade == nil || t.SellTrade == nil) {
		return 0, fmt.Errorf("%s ticker %s needs both buy and sell thresholds", t.Sentiment, t.Symbol)
	}
	t.Normalize()

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tickers (symbol, name, category, sentiment, buy_trade, sell_trade)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, category) DO UPDATE SET
			name = excluded.name,
			sentiment = excluded.sentiment,
			buy_trade = excluded.buy_trade,
			sell_trade = excluded.sell_trade
		RETURNING id`,
		t.Symbol, t.Name, string(t.Category), string(t.Sentiment), nullFloat(t.BuyTrade), nullFloat(t.SellTrade),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert ticker %s: %w", t.Symbol, err)
	}
	return id, nil
}

// Delete stops tracking a ticker
func (r *Repository) Delete(ctx context.Context, symbol string, category domain.Category) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tickers WHERE symbol = ? AND category = ?",
		normalizeSymbol(symbol), string(category))
	if err != nil {
		return fmt.Errorf("failed to delete ticker %s: %w", symbol, err)
	}
	return nil
}

// UpdatePrices writes prices into the session's slot in one transaction.
// The other session's slot is never touched.
func (r *Repository) UpdatePrices(ctx context.Context, session domain.Session, category domain.Category, prices map[string]domain.PriceResult) error {
	column, err := priceColumn(session)
	if err != nil {
		return err
	}
	if len(prices) == 0 {
		return nil
	}

	now := r.now().Unix()
	query := fmt.Sprintf("UPDATE tickers SET %s = ?, last_price_update = ? WHERE symbol = ? AND category = ?", column)

	var updated int64
	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for symbol, p := range prices {
			res, err := stmt.ExecContext(ctx, p.Price, now, symbol, string(category))
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", symbol, err)
			}
			n, _ := res.RowsAffected()
			updated += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("session", string(session)).
		Str("category", string(category)).
		Int64("updated", updated).
		Msg("Session prices stored")
	return nil
}

// LastKnownPrices returns the stored PM price, else the AM price, per symbol
func (r *Repository) LastKnownPrices(ctx context.Context, category domain.Category) (map[string]domain.PriceResult, error) {
	list, err := r.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.PriceResult, len(list))
	for _, t := range list {
		p, ok := t.LastKnownPrice()
		if !ok {
			continue
		}
		res := domain.PriceResult{Symbol: t.Symbol, Price: p, Provider: domain.ProviderStored}
		if t.LastPriceUpdate != nil {
			res.Timestamp = *t.LastPriceUpdate
		}
		out[t.Symbol] = res
	}
	return out, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]domain.Ticker, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var out []domain.Ticker
	for rows.Next() {
		t, err := scanTicker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTicker(rows *sql.Rows) (domain.Ticker, error) {
	var (
		t                   domain.Ticker
		category, sentiment string
		buy, sell, am, pm   sql.NullFloat64
		lastUpdate          sql.NullInt64
	)
	if err := rows.Scan(&t.ID, &t.Symbol, &t.Name, &category, &sentiment, &buy, &sell, &am, &pm, &lastUpdate); err != nil {
		return t, err
	}
	t.Category = domain.Category(category)
	t.Sentiment = domain.Sentiment(sentiment)
	t.BuyTrade = floatPtr(buy)
	t.SellTrade = floatPtr(sell)
	t.AMPrice = floatPtr(am)
	t.PMPrice = floatPtr(pm)
	if lastUpdate.Valid {
		ts := time.Unix(lastUpdate.Int64, 0).UTC()
		t.LastPriceUpdate = &ts
	}
	return t, nil
}

func priceColumn(session domain.Session) (string, error) {
	switch session {
	case domain.SessionAM:
		return "am_price", nil
	case domain.SessionPM:
		return "pm_price", nil
	}
	return "", fmt.Errorf("unknown session %q", session)
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
