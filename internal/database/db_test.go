package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), name+".db"), Name: name})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *DB, table string) bool {
	t.Helper()
	var name string
	err := db.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestMigrate_AppliesSchemaByName(t *testing.T) {
	history := newDB(t, "history")
	require.NoError(t, history.Migrate())
	assert.True(t, tableExists(t, history, "asset_returns"))
	assert.True(t, tableExists(t, history, "benchmark_levels"))
	assert.False(t, tableExists(t, history, "backtest_runs"))

	// idempotent
	require.NoError(t, history.Migrate())

	runs := newDB(t, "backtests")
	require.NoError(t, runs.Migrate())
	assert.True(t, tableExists(t, runs, "backtest_runs"))

	other := newDB(t, "scratch")
	require.NoError(t, other.Migrate())
	assert.False(t, tableExists(t, other, "asset_returns"))
}

func TestWithTransaction(t *testing.T) {
	db := newDB(t, "history")
	require.NoError(t, db.Migrate())

	insert := func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO asset_returns (asset_id, date, period_return) VALUES ('A', 1, 0.01)")
		return err
	}

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insert(tx))
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM asset_returns").Scan(&count))
	assert.Equal(t, 0, count)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("unexpected")
	})
	assert.Error(t, err)

	require.NoError(t, WithTransaction(db.Conn(), insert))
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM asset_returns").Scan(&count))
	assert.Equal(t, 1, count)

	assert.Error(t, WithTransaction(nil, insert))
}
