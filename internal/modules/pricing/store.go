package pricing

import (
	"context"

	"github.com/aristath/pricesentry/internal/clientdata"
)

// SQLiteStore keeps cache entries in the client_data database
type SQLiteStore struct {
	repo *clientdata.Repository
}

// NewSQLiteStore wraps a clientdata repository
func NewSQLiteStore(repo *clientdata.Repository) *SQLiteStore {
	return &SQLiteStore{repo: repo}
}

// LoadAll reads every stored row
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]CacheEntry, error) {
	rows, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CacheEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, CacheEntry{
			Symbol:    r.Symbol,
			Category:  r.Category,
			Provider:  r.Provider,
			Price:     r.Price,
			FetchedAt: r.FetchedAt,
		})
	}
	return out, nil
}

// Save upserts entries in one transaction
func (s *SQLiteStore) Save(ctx context.Context, entries []CacheEntry) error {
	rows := make([]clientdata.PriceRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, clientdata.PriceRow{
			Symbol:    e.Symbol,
			Category:  e.Category,
			Provider:  e.Provider,
			Price:     e.Price,
			FetchedAt: e.FetchedAt,
		})
	}
	return s.repo.Upsert(ctx, rows)
}
