package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/backtester/internal/domain"
	testutil "github.com/aristath/backtester/internal/testing"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRepository_ObservationsRoundTrip(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "history")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	dates := testutil.BusinessDays(date(2024, 1, 1), date(2024, 1, 31))
	fixtures := testutil.NewReturnFixtures(1, dates, []string{"B", "A", "C"})
	require.NoError(t, repo.UpsertObservations(ctx, fixtures))

	all, err := repo.LoadObservations(ctx, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, len(fixtures))
	assert.Equal(t, "A", all[0].AssetID)
	assert.Equal(t, dates[0], all[0].Date)

	some, err := repo.LoadObservations(ctx, []string{"A", "C"}, date(2024, 1, 10), date(2024, 1, 19))
	require.NoError(t, err)
	for _, obs := range some {
		assert.Contains(t, []string{"A", "C"}, obs.AssetID)
		assert.False(t, obs.Date.Before(date(2024, 1, 10)))
		assert.False(t, obs.Date.After(date(2024, 1, 19)))
	}
	assert.Len(t, some, 2*8)

	assets, err := repo.ListAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, assets)
}

func TestRepository_UpsertReplaces(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "history")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	obs := []domain.ReturnObservation{{Date: date(2024, 1, 2), AssetID: "A", Return: 0.01}}
	require.NoError(t, repo.UpsertObservations(ctx, obs))
	obs[0].Return = 0.02
	require.NoError(t, repo.UpsertObservations(ctx, obs))

	loaded, err := repo.LoadObservations(ctx, []string{"A"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 0.02, loaded[0].Return)

	err = repo.UpsertObservations(ctx, []domain.ReturnObservation{{Date: date(2024, 1, 3), Return: 0.01}})
	assert.Error(t, err)
}

func TestRepository_LoadBenchmark(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "history")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	levels := []domain.LevelObservation{
		{Date: date(2024, 1, 2), Level: 100, Return: 0},
		{Date: date(2024, 1, 4), Level: 102, Return: 0.02},
	}
	require.NoError(t, repo.UpsertBenchmarkLevels(ctx, "INDEX", levels))

	dates := []time.Time{date(2024, 1, 2), date(2024, 1, 3), date(2024, 1, 4)}
	s, err := repo.LoadBenchmark(ctx, "INDEX", dates)
	require.NoError(t, err)
	assert.Equal(t, "INDEX", s.Name())
	assert.Equal(t, []float64{100, 100, 102}, s.Capital())
	assert.InDeltaSlice(t, []float64{0, 0, 0.02}, s.Returns(), 1e-12)

	_, err = repo.LoadBenchmark(ctx, "MISSING", dates)
	assert.True(t, errors.Is(err, ErrBenchmarkNotFound))
}
