package backtest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/internal/modules/performance"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("backtest run not found")

// RunRepository stores completed runs in the backtests database.
// Definition, report and series are msgpack blobs; summary fields are columns.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("component", "run_repository").Logger(),
	}
}

// Save inserts a run.
func (r *RunRepository) Save(ctx context.Context, run *Run) error {
	definition, err := msgpack.Marshal(run.Definition)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}
	report, err := msgpack.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	series, err := msgpack.Marshal(run.Series.Points())
	if err != nil {
		return fmt.Errorf("failed to encode series: %w", err)
	}

	summary := run.Summary()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			id, name, objective, window_months, created_at, periods, fallbacks,
			annualized_return, max_drawdown, definition, report, series
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, summary.Name, string(summary.Objective), summary.WindowMonths,
		run.CreatedAt.Unix(), summary.Periods, summary.Fallbacks,
		summary.AnnualizedReturn, summary.MaxDrawdown,
		definition, report, series,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	r.log.Debug().Str("run_id", run.ID).Msg("Run stored")
	return nil
}

// Get loads a run by id.
func (r *RunRepository) Get(ctx context.Context, id string) (*Run, error) {
	var (
		createdAt                         int64
		fallbacks                         int
		definition, reportBlob, seriesBlob []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT created_at, fallbacks, definition, report, series
		FROM backtest_runs
		WHERE id = ?
	`, id).Scan(&createdAt, &fallbacks, &definition, &reportBlob, &seriesBlob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	run := &Run{ID: id, CreatedAt: time.Unix(createdAt, 0).UTC(), Fallbacks: fallbacks}
	if err := msgpack.Unmarshal(definition, &run.Definition); err != nil {
		return nil, fmt.Errorf("failed to decode definition of %s: %w", id, err)
	}
	var report performance.Report
	if err := msgpack.Unmarshal(reportBlob, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report of %s: %w", id, err)
	}
	run.Report = &report

	var points []domain.Point
	if err := msgpack.Unmarshal(seriesBlob, &points); err != nil {
		return nil, fmt.Errorf("failed to decode series of %s: %w", id, err)
	}
	for i := range points {
		points[i].Date = points[i].Date.UTC()
	}
	series, err := domain.SeriesFromPoints(report.Portfolio.Name, points)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild series of %s: %w", id, err)
	}
	run.Series = series

	return run, nil
}

// List returns the most recent runs first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, objective, window_months, created_at, periods, fallbacks,
		       annualized_return, max_drawdown
		FROM backtest_runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := []RunSummary{}
	for rows.Next() {
		var s RunSummary
		var objective string
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.Name, &objective, &s.WindowMonths, &createdAt,
			&s.Periods, &s.Fallbacks, &s.AnnualizedReturn, &s.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.Objective = domain.Objective(objective)
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return summaries, nil
}
