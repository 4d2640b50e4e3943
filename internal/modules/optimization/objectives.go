package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/backtester/internal/domain"
)

// sharpeVolFloor keeps the Sharpe objective finite when volatility collapses.
const sharpeVolFloor = 1e-10

// Objective evaluates candidate weights. Lower values are better.
type Objective interface {
	Name() domain.Objective
	// Value returns the objective at weights w.
	Value(w []float64) float64
	// Gradient writes ∂Value/∂w into grad.
	Gradient(grad, w []float64)
}

// NewObjective returns the objective variant for kind over the given moments.
func NewObjective(kind domain.Objective, m *Moments) (Objective, error) {
	switch kind {
	case domain.ObjectiveEqual:
		return equalWeight{}, nil
	case domain.ObjectiveMinVariance:
		return minVariance{m: m}, nil
	case domain.ObjectiveMaxSharpe:
		return maxSharpe{m: m}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownObjective, kind)
	}
}

// equalWeight is flat: every feasible allocation scores the same, and the
// solver short-circuits to 1/N.
type equalWeight struct{}

func (equalWeight) Name() domain.Objective { return domain.ObjectiveEqual }

func (equalWeight) Value([]float64) float64 { return 0 }

func (equalWeight) Gradient(grad, _ []float64) {
	for i := range grad {
		grad[i] = 0
	}
}

// minVariance minimizes w'Σw.
type minVariance struct {
	m *Moments
}

func (minVariance) Name() domain.Objective { return domain.ObjectiveMinVariance }

func (o minVariance) Value(w []float64) float64 {
	_, variance := o.m.portfolioStats(w)
	return variance
}

func (o minVariance) Gradient(grad, w []float64) {
	// ∇(w'Σw) = 2Σw
	var sw mat.VecDense
	sw.MulVec(o.m.Cov, mat.NewVecDense(len(w), w))
	for i := range grad {
		grad[i] = 2 * sw.AtVec(i)
	}
}

// maxSharpe minimizes -(μ'w) / sqrt(w'Σw).
type maxSharpe struct {
	m *Moments
}

func (maxSharpe) Name() domain.Objective { return domain.ObjectiveMaxSharpe }

func (o maxSharpe) Value(w []float64) float64 {
	ret, variance := o.m.portfolioStats(w)
	return -ret / volatility(variance)
}

func (o maxSharpe) Gradient(grad, w []float64) {
	ret, variance := o.m.portfolioStats(w)
	vol := volatility(variance)

	var sw mat.VecDense
	sw.MulVec(o.m.Cov, mat.NewVecDense(len(w), w))

	for i := range grad {
		grad[i] = -o.m.Mean[i] / vol
		if vol > sharpeVolFloor {
			// ∂vol/∂w = Σw / vol
			grad[i] += ret * sw.AtVec(i) / (vol * vol * vol)
		}
	}
}

func volatility(variance float64) float64 {
	return math.Max(math.Sqrt(math.Max(variance, 0)), sharpeVolFloor)
}
