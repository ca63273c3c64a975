package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMigratedDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestMigrate_CreatesTablesAndIsRepeatable(t *testing.T) {
	db := newMigratedDB(t, NameMain, ProfileStandard)
	require.NoError(t, db.Migrate())

	for _, table := range []string{"tickers", "alerts"} {
		var name string
		err := db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_ClientData(t *testing.T) {
	db := newMigratedDB(t, NameClientData, ProfileCache)

	var count int
	err := db.Conn().QueryRow(`SELECT COUNT(*) FROM current_prices`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, ProfileCache, db.Profile())
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newMigratedDB(t, "scratch", ProfileStandard)
	assert.NoError(t, db.QuickCheck(context.Background()))
}

func TestWithTransaction(t *testing.T) {
	db := newMigratedDB(t, NameMain, ProfileStandard)
	insert := func(tx *sql.Tx, symbol string) error {
		_, err := tx.Exec(`INSERT INTO tickers (symbol, category) VALUES (?, 'daily')`, symbol)
		return err
	}
	countTickers := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM tickers`).Scan(&n))
		return n
	}

	t.Run("commits on success", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error { return insert(tx, "AAPL") })
		require.NoError(t, err)
		assert.Equal(t, 1, countTickers())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx, "MSFT"))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, countTickers())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx, "NVDA"))
			panic("unexpected")
		})
		assert.ErrorContains(t, err, "panic in transaction")
		assert.Equal(t, 1, countTickers())
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
	})
}

func TestGetStats(t *testing.T) {
	db := newMigratedDB(t, NameMain, ProfileStandard)
	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))
	assert.NoError(t, db.WALCheckpoint(""))
}
