package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/config"
	"github.com/aristath/backtester/internal/modules/backtest"
	"github.com/aristath/backtester/internal/modules/history"
	"github.com/aristath/backtester/internal/modules/optimization"
	"github.com/aristath/backtester/internal/modules/performance"
	"github.com/aristath/backtester/internal/modules/rebalancing"
	"github.com/aristath/backtester/internal/scheduler"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.HistoryDB == nil || container.BacktestsDB == nil {
		return fmt.Errorf("databases not initialized")
	}
	container.HistoryRepo = history.NewRepository(container.HistoryDB.Conn(), log)
	container.RunRepo = backtest.NewRunRepository(container.BacktestsDB.Conn(), log)
	return nil
}

// InitializeServices creates the solver, rebalancer, report builder, publisher
// and the backtest service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	bt := cfg.Backtest

	container.Registry = prometheus.NewRegistry()
	container.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	container.BacktestMetrics = backtest.NewMetrics(container.Registry)

	container.Solver = optimization.NewSolver(optimization.Options{
		PeriodsPerYear: bt.PeriodsPerYear,
		MaxIterations:  bt.MaxIterations,
	}, log)
	container.Rebalancer = rebalancing.NewRebalancer(container.Solver, log)
	container.ReportBuilder = performance.NewBuilder(performance.Settings{
		PeriodsPerYear: bt.PeriodsPerYear,
		RiskFreeRate:   bt.RiskFreeRate,
		RollingWindow:  bt.RollingWindow,
	}, log)

	publisher, err := backtest.NewPublisher(ctx, cfg.Export.S3Bucket, cfg.Export.S3Prefix, cfg.Export.AWSRegion, log)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	container.Publisher = publisher

	container.BacktestService = backtest.NewService(
		container.HistoryRepo,
		container.RunRepo,
		container.Rebalancer,
		container.ReportBuilder,
		container.Publisher,
		container.BacktestMetrics,
		backtest.Defaults{
			WindowMonths: bt.WindowMonths,
			Objective:    bt.Objective,
			BaseCapital:  bt.BaseCapital,
		},
		log,
	)

	container.Scheduler = scheduler.New(log)
	return nil
}
