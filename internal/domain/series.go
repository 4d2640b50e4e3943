package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSeries is returned when series inputs break an invariant
// (mismatched lengths, unordered dates, non-finite values).
var ErrInvalidSeries = errors.New("invalid series")

// Point is one dated entry of a Series.
type Point struct {
	Date    time.Time `json:"date" msgpack:"date"`
	Return  float64   `json:"return" msgpack:"return"`
	Capital float64   `json:"capital" msgpack:"capital"`
}

// Series is an immutable dated return series with its capital line.
// Accessors return copies, so a Series can be shared freely.
type Series struct {
	name    string
	dates   []time.Time
	returns []float64
	capital []float64
}

// NewSeries builds a series from per-period returns, compounding capital from base:
// capital[0] = base and capital[t] = capital[t-1] * (1 + returns[t]).
// The first return is treated as already reflected in the base value, so ratios
// of capital points match the usual cumulative-product convention.
func NewSeries(name string, dates []time.Time, returns []float64, base float64) (Series, error) {
	if len(dates) != len(returns) {
		return Series{}, fmt.Errorf("%w: %s has %d dates but %d returns", ErrInvalidSeries, name, len(dates), len(returns))
	}
	if !(base > 0) || math.IsInf(base, 0) {
		return Series{}, fmt.Errorf("%w: %s base capital must be positive, got %v", ErrInvalidSeries, name, base)
	}
	if err := checkDates(name, dates); err != nil {
		return Series{}, err
	}
	if err := checkFinite(name, "return", returns); err != nil {
		return Series{}, err
	}

	capital := make([]float64, len(returns))
	for t := range returns {
		if t == 0 {
			capital[t] = base
			continue
		}
		capital[t] = capital[t-1] * (1 + returns[t])
	}

	return Series{
		name:    name,
		dates:   copyDates(dates),
		returns: copyFloats(returns),
		capital: capital,
	}, nil
}

// NewLevelSeries builds a series whose capital line is an externally supplied
// level series (a tracked index close), with its own periodic returns.
func NewLevelSeries(name string, dates []time.Time, returns, levels []float64) (Series, error) {
	if len(dates) != len(returns) || len(dates) != len(levels) {
		return Series{}, fmt.Errorf("%w: %s has %d dates, %d returns, %d levels",
			ErrInvalidSeries, name, len(dates), len(returns), len(levels))
	}
	if err := checkDates(name, dates); err != nil {
		return Series{}, err
	}
	if err := checkFinite(name, "return", returns); err != nil {
		return Series{}, err
	}
	if err := checkFinite(name, "level", levels); err != nil {
		return Series{}, err
	}
	for i, l := range levels {
		if l <= 0 {
			return Series{}, fmt.Errorf("%w: %s level at %s must be positive, got %v",
				ErrInvalidSeries, name, dates[i].Format("2006-01-02"), l)
		}
	}

	return Series{
		name:    name,
		dates:   copyDates(dates),
		returns: copyFloats(returns),
		capital: copyFloats(levels),
	}, nil
}

// SeriesFromPoints rebuilds a series from stored points.
func SeriesFromPoints(name string, points []Point) (Series, error) {
	dates := make([]time.Time, len(points))
	returns := make([]float64, len(points))
	levels := make([]float64, len(points))
	for i, p := range points {
		dates[i] = p.Date
		returns[i] = p.Return
		levels[i] = p.Capital
	}
	return NewLevelSeries(name, dates, returns, levels)
}

// Name returns the series label.
func (s Series) Name() string { return s.name }

// Len returns the number of points.
func (s Series) Len() int { return len(s.dates) }

// Empty reports whether the series has no points.
func (s Series) Empty() bool { return len(s.dates) == 0 }

// Dates returns a copy of the dates.
func (s Series) Dates() []time.Time { return copyDates(s.dates) }

// Returns returns a copy of the per-period returns.
func (s Series) Returns() []float64 { return copyFloats(s.returns) }

// Capital returns a copy of the capital line.
func (s Series) Capital() []float64 { return copyFloats(s.capital) }

// First returns the first date. The series must not be empty.
func (s Series) First() time.Time { return s.dates[0] }

// Last returns the last date. The series must not be empty.
func (s Series) Last() time.Time { return s.dates[len(s.dates)-1] }

// Points returns the series as dated points.
func (s Series) Points() []Point {
	points := make([]Point, len(s.dates))
	for i := range s.dates {
		points[i] = Point{Date: s.dates[i], Return: s.returns[i], Capital: s.capital[i]}
	}
	return points
}

// Rename returns a copy of the series with a different label.
func (s Series) Rename(name string) Series {
	s.name = name
	return s
}

func checkDates(name string, dates []time.Time) error {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return fmt.Errorf("%w: %s dates not strictly increasing at %s",
				ErrInvalidSeries, name, dates[i].Format("2006-01-02"))
		}
	}
	return nil
}

func checkFinite(name, field string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %s at index %d is not finite", ErrInvalidSeries, name, field, i)
		}
	}
	return nil
}

func copyDates(in []time.Time) []time.Time {
	out := make([]time.Time, len(in))
	copy(out, in)
	return out
}

func copyFloats(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
