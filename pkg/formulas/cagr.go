package formulas

import (
	"fmt"
	"math"
	"time"
)

// CalendarDays returns the inclusive number of calendar days between two dates.
// Both dates count, so two consecutive days span 2.
func CalendarDays(first, last time.Time) int {
	y1, m1, d1 := first.Date()
	y2, m2, d2 := last.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours()/24) + 1
}

// CalculateAnnualizedReturn annualizes the growth between two capital points.
//
// Formula: (endCapital / startCapital)^(365 / spanDays) - 1
// where spanDays is the inclusive calendar-day count between first and last.
//
// A series whose last date is not after its first has no elapsed time and
// cannot be annualized: ErrZeroSpan.
func CalculateAnnualizedReturn(first, last time.Time, startCapital, endCapital float64) (float64, error) {
	if !last.After(first) || CalendarDays(first, last) < 2 {
		return 0, fmt.Errorf("annualized return between %s and %s: %w",
			first.Format("2006-01-02"), last.Format("2006-01-02"), ErrZeroSpan)
	}
	if startCapital <= 0 || endCapital <= 0 {
		return 0, fmt.Errorf("annualized return from %v to %v: %w", startCapital, endCapital, ErrNonPositiveCapital)
	}

	spanDays := float64(CalendarDays(first, last))
	return math.Pow(endCapital/startCapital, 365/spanDays) - 1, nil
}

// CumulativeReturns rebases a value series to its first point: v[t]/v[0] - 1.
func CumulativeReturns(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, ErrEmptySeries
	}
	if values[0] <= 0 {
		return nil, fmt.Errorf("cumulative return base %v: %w", values[0], ErrNonPositiveCapital)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v/values[0] - 1
	}
	return out, nil
}
