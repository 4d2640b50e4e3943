package performance

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/backtester/internal/domain"
)

// ErrNoBenchmarkLevel is returned when a target date precedes every benchmark level.
var ErrNoBenchmarkLevel = errors.New("no benchmark level on or before date")

// AlignBenchmark projects an index's level history onto the given dates.
//
// Levels are forward-filled in price space: each date takes the latest level
// observed on or before it. Returns are recomputed from the aligned levels, so
// a date the index did not trade on contributes a zero return. The first date
// keeps the index's own return when it was observed on that day, zero otherwise.
func AlignBenchmark(name string, levels []domain.LevelObservation, dates []time.Time) (domain.Series, error) {
	if len(dates) == 0 {
		return domain.NewLevelSeries(name, nil, nil, nil)
	}

	sorted := make([]domain.LevelObservation, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := range sorted {
		sorted[i].Date = domain.Day(sorted[i].Date)
		if i > 0 && sorted[i].Date.Equal(sorted[i-1].Date) {
			return domain.Series{}, fmt.Errorf("%w: benchmark %q has two levels on %s",
				domain.ErrInvalidSeries, name, sorted[i].Date.Format("2006-01-02"))
		}
	}

	aligned := make([]float64, len(dates))
	returns := make([]float64, len(dates))
	j := -1
	for i, d := range dates {
		d = domain.Day(d)
		for j+1 < len(sorted) && !sorted[j+1].Date.After(d) {
			j++
		}
		if j < 0 {
			return domain.Series{}, fmt.Errorf("%w: benchmark %q on %s", ErrNoBenchmarkLevel, name, d.Format("2006-01-02"))
		}
		aligned[i] = sorted[j].Level
		switch {
		case i > 0:
			returns[i] = aligned[i]/aligned[i-1] - 1
		case sorted[j].Date.Equal(d):
			returns[i] = sorted[j].Return
		}
	}

	return domain.NewLevelSeries(name, dates, returns, aligned)
}
