package optimization

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// maxCondition bounds the covariance condition number; beyond it the matrix is
// treated as singular.
const maxCondition = 1e12

var (
	// ErrInsufficientObservations means the window has fewer than two rows.
	ErrInsufficientObservations = errors.New("insufficient observations")
	// ErrSingularCovariance means the covariance matrix is not positive definite.
	ErrSingularCovariance = errors.New("singular covariance matrix")
	// ErrNonFiniteInput means the window contains NaN or Inf.
	ErrNonFiniteInput = errors.New("non-finite input")
)

// Moments holds annualized first and second moments of a return window.
type Moments struct {
	Mean []float64     // column mean × periods per year
	Cov  *mat.SymDense // sample covariance × periods per year
}

// EstimateMoments computes annualized means and the annualized sample
// covariance (n-1 denominator) of a window whose rows are periods and whose
// columns are assets.
func EstimateMoments(window mat.Matrix, periodsPerYear int) (*Moments, error) {
	rows, cols := window.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("%w: window has %d rows", ErrInsufficientObservations, rows)
	}
	p := float64(periodsPerYear)

	mean := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, window)
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d column %d", ErrNonFiniteInput, i, j)
			}
		}
		mean[j] = stat.Mean(col, nil) * p
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, window, nil)
	cov.ScaleSym(p, &cov)

	return &Moments{Mean: mean, Cov: &cov}, nil
}

// checkPositiveDefinite rejects covariance matrices that cannot be factorized
// or are too ill-conditioned to optimize over.
func checkPositiveDefinite(cov mat.Symmetric) error {
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return ErrSingularCovariance
	}
	if cond := chol.Cond(); cond > maxCondition || math.IsNaN(cond) {
		return fmt.Errorf("%w: condition number %.3g", ErrSingularCovariance, cond)
	}
	return nil
}

// portfolioStats returns the expected return μ'w and variance w'Σw of weights w.
func (m *Moments) portfolioStats(w []float64) (ret, variance float64) {
	for i := range w {
		ret += m.Mean[i] * w[i]
	}
	v := mat.NewVecDense(len(w), w)
	variance = mat.Inner(v, m.Cov, v)
	return ret, variance
}
