// Package alerts persists, renders and delivers session alert sets.
package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/database"
	"github.com/aristath/pricesentry/internal/domain"
)

const alertColumns = `id, batch_id, symbol, name, category, session, action, sentiment,
current_price, buy_trade, sell_trade, threshold_crossed, profit_pct, generated_at, is_active`

// Repository handles alert database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates an alert repository over the main database
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "alerts").Logger(),
	}
}

// ReplaceSession deactivates the session's active alerts and inserts the new
// set in one transaction. Other sessions are not touched and nothing is deleted.
func (r *Repository) ReplaceSession(ctx context.Context, session domain.Session, alerts []domain.Alert) error {
	var deactivated int64
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE alerts SET is_active = 0 WHERE session = ? AND is_active = 1", string(session))
		if err != nil {
			return fmt.Errorf("failed to deactivate %s alerts: %w", session, err)
		}
		deactivated, _ = res.RowsAffected()

		if len(alerts) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO alerts (batch_id, symbol, name, category, session, action, sentiment,
				current_price, buy_trade, sell_trade, threshold_crossed, profit_pct, generated_at, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range alerts {
			if _, err := stmt.ExecContext(ctx,
				a.BatchID, a.Symbol, a.Name, string(a.Category), string(session), string(a.Action), string(a.Sentiment),
				a.CurrentPrice, a.BuyTrade, a.SellTrade, a.ThresholdCrossed, a.ProfitPct, a.GeneratedAt.Unix(),
			); err != nil {
				return fmt.Errorf("failed to insert alert for %s: %w", a.Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("session", string(session)).
		Int64("deactivated", deactivated).
		Int("inserted", len(alerts)).
		Msg("Session alerts replaced")
	return nil
}

// Active returns the current alerts of a session, or of both sessions when session is empty
func (r *Repository) Active(ctx context.Context, session domain.Session) ([]domain.Alert, error) {
	if session == "" {
		return r.query(ctx, "SELECT "+alertColumns+" FROM alerts WHERE is_active = 1 ORDER BY session, category, symbol")
	}
	return r.query(ctx, "SELECT "+alertColumns+" FROM alerts WHERE is_active = 1 AND session = ? ORDER BY category, symbol",
		string(session))
}

// History returns every alert generated at or after since, newest first
func (r *Repository) History(ctx context.Context, since time.Time) ([]domain.Alert, error) {
	return r.query(ctx, "SELECT "+alertColumns+" FROM alerts WHERE generated_at >= ? ORDER BY generated_at DESC, id DESC",
		since.Unix())
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a                                    domain.Alert
			category, session, action, sentiment string
			generatedAt                          int64
			active                               int
		)
		if err := rows.Scan(&a.ID, &a.BatchID, &a.Symbol, &a.Name, &category, &session, &action, &sentiment,
			&a.CurrentPrice, &a.BuyTrade, &a.SellTrade, &a.ThresholdCrossed, &a.ProfitPct, &generatedAt, &active); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Category = domain.Category(category)
		a.Session = domain.Session(session)
		a.Action = domain.Action(action)
		a.Sentiment = domain.Sentiment(sentiment)
		a.GeneratedAt = time.Unix(generatedAt, 0).UTC()
		a.IsActive = active == 1
		out = append(out, a)
	}
	return out, rows.Err()
}
