// Package main is the backtester command line: run definition files against
// the history database and inspect stored runs.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/backtester/internal/config"
	"github.com/aristath/backtester/internal/di"
	"github.com/aristath/backtester/pkg/logger"
)

var (
	dataDir  string
	logLevel string
)

// rootCmd is the base command for the backtester CLI
var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Rolling mean-variance rebalancing backtester",
	Long: `backtest rebalances a multi-asset portfolio at every month-end using
weights fitted on a trailing window, then reports annualized return, drawdown,
volatility, Sharpe ratio and benchmark-relative statistics.

Asset returns and benchmark levels are read from history.db in the data directory.
Completed runs are stored in backtests.db next to it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory holding history.db and backtests.db (default $BACKTESTER_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// wire loads configuration, applies flag overrides and builds the container.
func wire(ctx context.Context) (*di.Container, zerolog.Logger, error) {
	log := logger.New(logger.Config{
		Level:  logLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	if dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, log, fmt.Errorf("invalid data directory: %w", err)
		}
		os.Setenv("BACKTESTER_DATA_DIR", abs)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, log, err
	}
	// Schedules belong to the server
	cfg.Schedule = ""
	cfg.DBCheckSchedule = ""
	if err := cfg.Validate(); err != nil {
		return nil, log, err
	}

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return nil, log, err
	}
	return container, log, nil
}
