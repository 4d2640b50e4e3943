package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/config"
	"github.com/aristath/backtester/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// history.db - read-mostly time series
	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileCache,
		Name:    "history",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryDB = historyDB

	// backtests.db - stored runs
	backtestsDB, err := database.New(database.Config{
		Path:    cfg.BacktestsDBPath(),
		Profile: database.ProfileStandard,
		Name:    "backtests",
	})
	if err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("failed to initialize backtests database: %w", err)
	}
	container.BacktestsDB = backtestsDB

	for _, db := range []*database.DB{historyDB, backtestsDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("history", historyDB.Path()).
		Str("backtests", backtestsDB.Path()).
		Msg("Databases initialized")

	return container, nil
}
