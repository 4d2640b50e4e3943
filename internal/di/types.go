/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency of the backtester and is
 * shared by the HTTP server, the scheduler and the CLI.
 */
package di

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aristath/backtester/internal/database"
	"github.com/aristath/backtester/internal/modules/backtest"
	"github.com/aristath/backtester/internal/modules/history"
	"github.com/aristath/backtester/internal/modules/optimization"
	"github.com/aristath/backtester/internal/modules/performance"
	"github.com/aristath/backtester/internal/modules/rebalancing"
	"github.com/aristath/backtester/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	HistoryDB   *database.DB // history.db - asset returns and benchmark levels
	BacktestsDB *database.DB // backtests.db - completed runs

	// Repositories
	HistoryRepo *history.Repository
	RunRepo     *backtest.RunRepository

	// Services
	Solver          *optimization.Solver
	Rebalancer      *rebalancing.Rebalancer
	ReportBuilder   *performance.Builder
	Publisher       backtest.Publisher
	BacktestMetrics *backtest.Metrics
	BacktestService *backtest.Service

	Registry  *prometheus.Registry
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the jobs registered with the scheduler
type JobInstances struct {
	// Backtests is nil when no schedule is configured
	Backtests scheduler.Job
	// CheckDatabases is always created; it is only scheduled when DBCheckSchedule is set
	CheckDatabases scheduler.Job
}

// Close closes every open database
func (c *Container) Close() {
	if c.HistoryDB != nil {
		c.HistoryDB.Close()
	}
	if c.BacktestsDB != nil {
		c.BacktestsDB.Close()
	}
}
