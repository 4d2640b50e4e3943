// Package history stores the per-asset returns and benchmark levels backtests run on.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/backtester/internal/database"
	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/modules/performance"
)

// ErrBenchmarkNotFound is returned when a benchmark has no stored levels.
var ErrBenchmarkNotFound = errors.New("benchmark not found")

// Repository provides access to the history database
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "history_repository").Logger(),
	}
}

// LoadObservations returns the stored returns of the given assets within
// [from, to], ordered by asset then date. Zero times leave that side open and
// an empty asset list selects every asset.
func (r *Repository) LoadObservations(ctx context.Context, assets []string, from, to time.Time) ([]domain.ReturnObservation, error) {
	query := `SELECT asset_id, date, period_return FROM asset_returns WHERE 1=1`
	var args []interface{}

	if len(assets) > 0 {
		query += ` AND asset_id IN (?` + strings.Repeat(`, ?`, len(assets)-1) + `)`
		for _, a := range assets {
			args = append(args, a)
		}
	}
	if !from.IsZero() {
		query += ` AND date >= ?`
		args = append(args, domain.Day(from).Unix())
	}
	if !to.IsZero() {
		query += ` AND date <= ?`
		args = append(args, domain.Day(to).Unix())
	}
	query += ` ORDER BY asset_id, date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset returns: %w", err)
	}
	defer rows.Close()

	var observations []domain.ReturnObservation
	for rows.Next() {
		var obs domain.ReturnObservation
		var dateUnix int64
		if err := rows.Scan(&obs.AssetID, &dateUnix, &obs.Return); err != nil {
			return nil, fmt.Errorf("failed to scan asset return: %w", err)
		}
		obs.Date = time.Unix(dateUnix, 0).UTC()
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset returns: %w", err)
	}

	r.log.Debug().
		Int("assets", len(assets)).
		Int("observations", len(observations)).
		Msg("Loaded asset returns")

	return observations, nil
}

// LoadLevels returns a benchmark's levels on or before to (zero = all), ordered by date.
func (r *Repository) LoadLevels(ctx context.Context, benchmarkID string, to time.Time) ([]domain.LevelObservation, error) {
	query := `SELECT date, level, period_return FROM benchmark_levels WHERE benchmark_id = ?`
	args := []interface{}{benchmarkID}
	if !to.IsZero() {
		query += ` AND date <= ?`
		args = append(args, domain.Day(to).Unix())
	}
	query += ` ORDER BY date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmark levels: %w", err)
	}
	defer rows.Close()

	var levels []domain.LevelObservation
	for rows.Next() {
		var l domain.LevelObservation
		var dateUnix int64
		if err := rows.Scan(&dateUnix, &l.Level, &l.Return); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark level: %w", err)
		}
		l.Date = time.Unix(dateUnix, 0).UTC()
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating benchmark levels: %w", err)
	}
	return levels, nil
}

// LoadBenchmark returns the benchmark aligned to dates: levels forward-filled,
// returns zero on days the index did not trade.
func (r *Repository) LoadBenchmark(ctx context.Context, benchmarkID string, dates []time.Time) (domain.Series, error) {
	var to time.Time
	if len(dates) > 0 {
		to = dates[len(dates)-1]
	}
	levels, err := r.LoadLevels(ctx, benchmarkID, to)
	if err != nil {
		return domain.Series{}, err
	}
	if len(levels) == 0 {
		return domain.Series{}, fmt.Errorf("%w: %s", ErrBenchmarkNotFound, benchmarkID)
	}
	return performance.AlignBenchmark(benchmarkID, levels, dates)
}

// ListAssets returns every asset id with stored returns.
func (r *Repository) ListAssets(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT asset_id FROM asset_returns ORDER BY asset_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// UpsertObservations inserts or replaces asset returns in one transaction.
func (r *Repository) UpsertObservations(ctx context.Context, observations []domain.ReturnObservation) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO asset_returns (asset_id, date, period_return)
			VALUES (?, ?, ?)
			ON CONFLICT(asset_id, date) DO UPDATE SET period_return = excluded.period_return
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, obs := range observations {
			if obs.AssetID == "" {
				return fmt.Errorf("observation on %s has no asset id", obs.Date.Format("2006-01-02"))
			}
			if _, err := stmt.ExecContext(ctx, obs.AssetID, domain.Day(obs.Date).Unix(), obs.Return); err != nil {
				return fmt.Errorf("failed to upsert %s on %s: %w", obs.AssetID, obs.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Int("count", len(observations)).Msg("Stored asset returns")
	return nil
}

// UpsertBenchmarkLevels inserts or replaces a benchmark's levels in one transaction.
func (r *Repository) UpsertBenchmarkLevels(ctx context.Context, benchmarkID string, levels []domain.LevelObservation) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO benchmark_levels (benchmark_id, date, level, period_return)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(benchmark_id, date) DO UPDATE SET
				level = excluded.level,
				period_return = excluded.period_return
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, l := range levels {
			if _, err := stmt.ExecContext(ctx, benchmarkID, domain.Day(l.Date).Unix(), l.Level, l.Return); err != nil {
				return fmt.Errorf("failed to upsert %s level on %s: %w", benchmarkID, l.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Str("benchmark", benchmarkID).Int("count", len(levels)).Msg("Stored benchmark levels")
	return nil
}
