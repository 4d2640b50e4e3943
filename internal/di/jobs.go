package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/config"
	"github.com/aristath/backtester/internal/database"
	"github.com/aristath/backtester/internal/modules/backtest"
	"github.com/aristath/backtester/internal/scheduler"
)

// scheduledRunTimeout bounds one pass over all scheduled definitions
const scheduledRunTimeout = 30 * time.Minute

// RegisterJobs registers the database check and, when a schedule is
// configured, the scheduled backtest job
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		CheckDatabases: scheduler.NewCheckDatabasesJob(map[string]*database.DB{
			"history":   container.HistoryDB,
			"backtests": container.BacktestsDB,
		}, log),
	}
	if cfg.DBCheckSchedule != "" {
		if err := container.Scheduler.AddJob(cfg.DBCheckSchedule, instances.CheckDatabases); err != nil {
			return nil, err
		}
	}
	if cfg.Schedule == "" {
		log.Info().Msg("No backtest schedule configured")
		return instances, nil
	}

	definitions, err := backtest.LoadDefinitions(cfg.DefinitionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled definitions: %w", err)
	}

	job := backtest.NewJob(container.BacktestService, definitions, scheduledRunTimeout, log)
	if err := container.Scheduler.AddJob(cfg.Schedule, job); err != nil {
		return nil, err
	}
	instances.Backtests = job

	log.Info().
		Int("definitions", len(definitions)).
		Str("schedule", cfg.Schedule).
		Msg("Scheduled backtests registered")

	return instances, nil
}
