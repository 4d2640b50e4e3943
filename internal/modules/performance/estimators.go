// Package performance evaluates return series: scalar estimators, curves and
// the report that bundles them.
package performance

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/backtester/internal/domain"
	"github.com/aristath/backtester/pkg/formulas"
)

// ErrMisaligned is returned when paired series do not share the same dates.
var ErrMisaligned = errors.New("series dates misaligned")

// Drawdown is the deepest decline of a capital line, with the date of the
// running peak it fell from and the date it bottomed out.
type Drawdown struct {
	Value      float64   `json:"value" msgpack:"value"`
	PeakDate   time.Time `json:"peak_date" msgpack:"peak_date"`
	TroughDate time.Time `json:"trough_date" msgpack:"trough_date"`
}

// Streak holds the longest runs of up and down periods.
type Streak struct {
	Up   int `json:"up" msgpack:"up"`
	Down int `json:"down" msgpack:"down"`
}

func requireNonEmpty(s domain.Series) error {
	if s.Empty() {
		return fmt.Errorf("series %q: %w", s.Name(), formulas.ErrEmptySeries)
	}
	return nil
}

// checkAligned verifies both series are non-empty and carry identical dates.
func checkAligned(s, benchmark domain.Series) error {
	if err := requireNonEmpty(s); err != nil {
		return err
	}
	if err := requireNonEmpty(benchmark); err != nil {
		return err
	}
	if s.Len() != benchmark.Len() {
		return fmt.Errorf("%w: %q has %d points, %q has %d",
			ErrMisaligned, s.Name(), s.Len(), benchmark.Name(), benchmark.Len())
	}
	a, b := s.Dates(), benchmark.Dates()
	for i := range a {
		if !a[i].Equal(b[i]) {
			return fmt.Errorf("%w: %q has %s where %q has %s", ErrMisaligned,
				s.Name(), a[i].Format("2006-01-02"), benchmark.Name(), b[i].Format("2006-01-02"))
		}
	}
	return nil
}

// AnnualizedReturn compounds the capital growth over the inclusive calendar span.
func AnnualizedReturn(s domain.Series) (float64, error) {
	if err := requireNonEmpty(s); err != nil {
		return 0, err
	}
	capital := s.Capital()
	r, err := formulas.CalculateAnnualizedReturn(s.First(), s.Last(), capital[0], capital[len(capital)-1])
	if err != nil {
		return 0, fmt.Errorf("series %q: %w", s.Name(), err)
	}
	return r, nil
}

// MaxDrawdown returns the largest peak-to-trough decline of the capital line.
func MaxDrawdown(s domain.Series) (Drawdown, error) {
	if err := requireNonEmpty(s); err != nil {
		return Drawdown{}, err
	}
	dd, err := formulas.CalculateMaxDrawdown(s.Capital())
	if err != nil {
		return Drawdown{}, fmt.Errorf("series %q: %w", s.Name(), err)
	}
	dates := s.Dates()
	return Drawdown{
		Value:      dd.Value,
		PeakDate:   dates[dd.PeakIndex],
		TroughDate: dates[dd.TroughIndex],
	}, nil
}

// Volatility is the annualized sample standard deviation of returns.
func Volatility(s domain.Series, periodsPerYear int) (float64, error) {
	if err := requireNonEmpty(s); err != nil {
		return 0, err
	}
	v, err := formulas.AnnualizedVolatility(s.Returns(), periodsPerYear)
	if err != nil {
		return 0, fmt.Errorf("series %q: %w", s.Name(), err)
	}
	return v, nil
}

// SharpeRatio is (annualized return - rf) / volatility.
func SharpeRatio(s domain.Series, periodsPerYear int, riskFreeRate float64) (float64, error) {
	annualized, err := AnnualizedReturn(s)
	if err != nil {
		return 0, err
	}
	vol, err := Volatility(s, periodsPerYear)
	if err != nil {
		return 0, err
	}
	sharpe, err := formulas.CalculateSharpeRatio(annualized, vol, riskFreeRate)
	if err != nil {
		return 0, fmt.Errorf("series %q: %w", s.Name(), err)
	}
	return sharpe, nil
}

// Beta is the sample covariance with the benchmark over the benchmark's sample variance.
func Beta(s, benchmark domain.Series) (float64, error) {
	if err := checkAligned(s, benchmark); err != nil {
		return 0, err
	}
	beta, err := formulas.CalculateBeta(s.Returns(), benchmark.Returns())
	if err != nil {
		return 0, fmt.Errorf("beta of %q against %q: %w", s.Name(), benchmark.Name(), err)
	}
	return beta, nil
}

// Alpha is (Rp - rf) - beta × (Rb - rf) on annualized returns.
func Alpha(s, benchmark domain.Series, riskFreeRate float64) (float64, error) {
	beta, err := Beta(s, benchmark)
	if err != nil {
		return 0, err
	}
	rp, err := AnnualizedReturn(s)
	if err != nil {
		return 0, err
	}
	rb, err := AnnualizedReturn(benchmark)
	if err != nil {
		return 0, err
	}
	return formulas.CalculateAlpha(rp, rb, beta, riskFreeRate), nil
}

// InformationRatio is the annualized mean tracking difference over the
// annualized tracking error.
func InformationRatio(s, benchmark domain.Series, periodsPerYear int) (float64, error) {
	if err := checkAligned(s, benchmark); err != nil {
		return 0, err
	}
	ir, err := formulas.CalculateInformationRatio(s.Returns(), benchmark.Returns(), periodsPerYear)
	if err != nil {
		return 0, fmt.Errorf("information ratio of %q against %q: %w", s.Name(), benchmark.Name(), err)
	}
	return ir, nil
}

// AverageReturn is the mean periodic return.
func AverageReturn(s domain.Series) (float64, error) {
	if err := requireNonEmpty(s); err != nil {
		return 0, err
	}
	return formulas.AverageReturn(s.Returns())
}

// ProbabilityUp is the fraction of periods with a positive return.
func ProbabilityUp(s domain.Series) (float64, error) {
	if err := requireNonEmpty(s); err != nil {
		return 0, err
	}
	return formulas.ProbabilityUp(s.Returns())
}

// MaxSuccessiveStreak returns the longest up-run and down-run. Flat periods
// extend whichever run they follow.
func MaxSuccessiveStreak(s domain.Series) (Streak, error) {
	if err := requireNonEmpty(s); err != nil {
		return Streak{}, err
	}
	up, down := formulas.CalculateMaxStreaks(s.Returns())
	return Streak{Up: up, Down: down}, nil
}

// Extremes returns the best and worst periodic return.
func Extremes(s domain.Series) (maxReturn, minReturn float64, err error) {
	if err := requireNonEmpty(s); err != nil {
		return 0, 0, err
	}
	return formulas.Extremes(s.Returns())
}
