package alerts

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/aristath/pricesentry/internal/domain"
)

type csvAlert struct {
	GeneratedAt      string  `csv:"generated_at"`
	BatchID          string  `csv:"batch_id"`
	Session          string  `csv:"session"`
	Category         string  `csv:"category"`
	Symbol           string  `csv:"symbol"`
	Name             string  `csv:"name"`
	Sentiment        string  `csv:"sentiment"`
	Action           string  `csv:"action"`
	CurrentPrice     float64 `csv:"current_price"`
	BuyTrade         float64 `csv:"buy_trade"`
	SellTrade        float64 `csv:"sell_trade"`
	ThresholdCrossed float64 `csv:"threshold_crossed"`
	ProfitPct        float64 `csv:"profit_pct"`
	Active           bool    `csv:"is_active"`
}

// WriteCSV writes alerts with a header row
func WriteCSV(w io.Writer, alerts []domain.Alert) error {
	rows := make([]*csvAlert, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, &csvAlert{
			GeneratedAt:      a.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
			BatchID:          a.BatchID,
			Session:          string(a.Session),
			Category:         string(a.Category),
			Symbol:           a.Symbol,
			Name:             a.Name,
			Sentiment:        string(a.Sentiment),
			Action:           string(a.Action),
			CurrentPrice:     a.CurrentPrice,
			BuyTrade:         a.BuyTrade,
			SellTrade:        a.SellTrade,
			ThresholdCrossed: a.ThresholdCrossed,
			ProfitPct:        a.ProfitPct,
			Active:           a.IsActive,
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write alerts CSV: %w", err)
	}
	return nil
}
