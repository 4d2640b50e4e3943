// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/backtester/internal/domain"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Backtest BacktestConfig
	Export   ExportConfig

	// Schedule is a cron expression for re-running DefinitionsPath; empty disables it.
	Schedule        string
	DefinitionsPath string

	// DBCheckSchedule is a cron expression for database integrity checks; empty disables it.
	DBCheckSchedule string
}

// BacktestConfig holds the defaults applied to definitions that leave a field unset
type BacktestConfig struct {
	WindowMonths   int
	Objective      domain.Objective
	PeriodsPerYear int
	RiskFreeRate   float64
	BaseCapital    float64
	MaxIterations  int
	RollingWindow  int
}

// ExportConfig holds report export settings. An empty bucket disables uploads.
type ExportConfig struct {
	S3Bucket  string
	S3Prefix  string
	AWSRegion string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("BACKTESTER_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	objective, err := domain.ParseObjective(getEnv("OBJECTIVE", string(domain.ObjectiveEqual)))
	if err != nil {
		return nil, fmt.Errorf("%w: OBJECTIVE: %v", ErrInvalidConfig, err)
	}

	cfg := &Config{
		DataDir:  dataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Backtest: BacktestConfig{
			WindowMonths:   getEnvAsInt("WINDOW_MONTHS", 6),
			Objective:      objective,
			PeriodsPerYear: getEnvAsInt("PERIODS_PER_YEAR", 250),
			RiskFreeRate:   getEnvAsFloat("RISK_FREE_RATE", 0.0284),
			BaseCapital:    getEnvAsFloat("BASE_CAPITAL", 1.0),
			MaxIterations:  getEnvAsInt("OPTIMIZER_MAX_ITERATIONS", 1000),
			RollingWindow:  getEnvAsInt("ROLLING_WINDOW", 20),
		},
		Export: ExportConfig{
			S3Bucket:  getEnv("EXPORT_S3_BUCKET", ""),
			S3Prefix:  getEnv("EXPORT_S3_PREFIX", "backtests"),
			AWSRegion: getEnv("AWS_REGION", ""),
		},
		Schedule:        getEnv("BACKTEST_SCHEDULE", ""),
		DefinitionsPath: getEnv("BACKTEST_DEFINITIONS", ""),
		DBCheckSchedule: getEnv("DB_CHECK_SCHEDULE", "0 30 3 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration values are usable
func (c *Config) Validate() error {
	b := c.Backtest
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: GO_PORT %d out of range", ErrInvalidConfig, c.Port)
	case b.WindowMonths < 1:
		return fmt.Errorf("%w: WINDOW_MONTHS must be at least 1, got %d", ErrInvalidConfig, b.WindowMonths)
	case b.PeriodsPerYear < 1:
		return fmt.Errorf("%w: PERIODS_PER_YEAR must be positive, got %d", ErrInvalidConfig, b.PeriodsPerYear)
	case b.BaseCapital <= 0:
		return fmt.Errorf("%w: BASE_CAPITAL must be positive, got %v", ErrInvalidConfig, b.BaseCapital)
	case b.MaxIterations < 1:
		return fmt.Errorf("%w: OPTIMIZER_MAX_ITERATIONS must be positive, got %d", ErrInvalidConfig, b.MaxIterations)
	case b.RollingWindow < 0:
		return fmt.Errorf("%w: ROLLING_WINDOW must not be negative, got %d", ErrInvalidConfig, b.RollingWindow)
	case c.Schedule != "" && c.DefinitionsPath == "":
		return fmt.Errorf("%w: BACKTEST_SCHEDULE requires BACKTEST_DEFINITIONS", ErrInvalidConfig)
	}
	return nil
}

// HistoryDBPath returns the path of the history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// BacktestsDBPath returns the path of the stored-runs database.
func (c *Config) BacktestsDBPath() string {
	return filepath.Join(c.DataDir, "backtests.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
