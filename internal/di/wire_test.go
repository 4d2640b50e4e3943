package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/backtester/internal/config"
	"github.com/aristath/backtester/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir: t.TempDir(),
		Backtest: config.BacktestConfig{
			WindowMonths:   6,
			Objective:      domain.ObjectiveEqual,
			PeriodsPerYear: 250,
			RiskFreeRate:   0.0284,
			BaseCapital:    1,
			RollingWindow:  20,
		},
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.BacktestsDB)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "history.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "backtests.db"))
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.HistoryRepo)
	assert.NotNil(t, container.RunRepo)
	assert.NotNil(t, container.BacktestService)
	assert.NotNil(t, container.Publisher)
	assert.NotNil(t, container.Registry)
	assert.Nil(t, jobs.Backtests)
	require.NotNil(t, jobs.CheckDatabases)
	assert.NoError(t, jobs.CheckDatabases.Run())

	runs, err := container.BacktestService.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWire_ScheduledDefinitions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule = "0 0 2 * * *"
	cfg.DefinitionsPath = filepath.Join(t.TempDir(), "backtests.yaml")
	require.NoError(t, os.WriteFile(cfg.DefinitionsPath, []byte("backtests:\n  - name: nightly\n"), 0o644))

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, jobs.Backtests)
	assert.Equal(t, "scheduled_backtests", jobs.Backtests.Name())
}

func TestWire_BadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule = "not a schedule"
	cfg.DefinitionsPath = filepath.Join(t.TempDir(), "backtests.yaml")
	require.NoError(t, os.WriteFile(cfg.DefinitionsPath, []byte("backtests:\n  - name: nightly\n"), 0o644))

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
