// Package clientdata provides the durable rows behind the in-process price cache.
// One row per (symbol, category) holds the most recently fetched price.
package clientdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/pricesentry/internal/domain"
)

// PriceRow is a persisted cache entry
type PriceRow struct {
	FetchedAt time.Time
	Symbol    string
	Category  domain.Category
	Provider  domain.ProviderID
	Price     float64
}

// Repository provides cache row operations over the client_data database.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes rows in a single transaction. Either every row lands or none does.
func (r *Repository) Upsert(ctx context.Context, rows []PriceRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO current_prices (symbol, category, price, provider, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, category) DO UPDATE SET
			price = excluded.price,
			provider = excluded.provider,
			fetched_at = excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Symbol, string(row.Category), row.Price, string(row.Provider), row.FetchedAt.Unix()); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", row.Symbol, err)
		}
	}

	return tx.Commit()
}

// Get returns the row for a symbol regardless of age, or nil if none exists.
func (r *Repository) Get(ctx context.Context, symbol string, category domain.Category) (*PriceRow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT symbol, category, price, provider, fetched_at
		FROM current_prices WHERE symbol = ? AND category = ?`, symbol, string(category))

	p, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}
	return p, nil
}

// All returns every stored row
func (r *Repository) All(ctx context.Context) ([]PriceRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, category, price, provider, fetched_at
		FROM current_prices ORDER BY category, symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var out []PriceRow
	for rows.Next() {
		p, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes rows fetched before cutoff and returns how many went.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM current_prices WHERE fetched_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old prices: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (*PriceRow, error) {
	var (
		p         PriceRow
		category  string
		provider  string
		fetchedAt int64
	)
	if err := s.Scan(&p.Symbol, &category, &p.Price, &provider, &fetchedAt); err != nil {
		return nil, err
	}
	p.Category = domain.Category(category)
	p.Provider = domain.ProviderID(provider)
	p.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return &p, nil
}
