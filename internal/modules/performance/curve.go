package performance

import (
	"fmt"
	"time"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/pkg/formulas"
)

// Line is one named value series on a Curve's dates.
type Line struct {
	Name   string    `json:"name" msgpack:"name"`
	Values []float64 `json:"values" msgpack:"values"`
}

// Curve is a set of lines sharing one date axis, ready for plotting.
type Curve struct {
	Dates []time.Time `json:"dates" msgpack:"dates"`
	Lines []Line      `json:"lines" msgpack:"lines"`
}

// CumulativeReturnCurve rebases the portfolio and every benchmark to their
// first capital point (v/v[0] - 1). Benchmarks must share the portfolio's dates.
func CumulativeReturnCurve(portfolio domain.Series, benchmarks ...domain.Series) (*Curve, error) {
	if err := requireNonEmpty(portfolio); err != nil {
		return nil, err
	}

	for _, b := range benchmarks {
		if err := checkAligned(portfolio, b); err != nil {
			return nil, err
		}
	}

	curve := &Curve{Dates: portfolio.Dates()}
	for _, s := range append([]domain.Series{portfolio}, benchmarks...) {
		values, err := formulas.CumulativeReturns(s.Capital())
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name(), err)
		}
		curve.Lines = append(curve.Lines, Line{Name: s.Name(), Values: values})
	}
	return curve, nil
}

// RollingVolatility returns the annualized volatility of each trailing window.
// The curve starts at the window's last date.
func RollingVolatility(s domain.Series, window, periodsPerYear int) (*Curve, error) {
	if err := requireNonEmpty(s); err != nil {
		return nil, err
	}
	values, err := formulas.CalculateRollingVolatility(s.Returns(), window, periodsPerYear)
	if err != nil {
		return nil, fmt.Errorf("series %q: %w", s.Name(), err)
	}
	return &Curve{
		Dates: s.Dates()[window-1:],
		Lines: []Line{{Name: s.Name(), Values: values}},
	}, nil
}
