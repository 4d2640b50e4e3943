package optimization

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/backtester/internal/domain"
)

const (
	// DefaultPeriodsPerYear annualizes daily return windows.
	DefaultPeriodsPerYear = 250
	// DefaultMaxIterations is the optimizer's major-iteration budget.
	DefaultMaxIterations = 1000
)

var (
	// ErrNoAssets is returned when a window has no columns.
	ErrNoAssets = errors.New("no assets provided")
	// ErrDimensionMismatch is returned when asset ids and window columns disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotConverged marks an optimizer run that ended without convergence.
	ErrNotConverged = errors.New("optimizer did not converge")
)

// Options configures the Solver.
type Options struct {
	PeriodsPerYear int
	MaxIterations  int
}

// Solution is the result of one solve.
type Solution struct {
	Weights   domain.WeightVector
	Objective domain.Objective
	// Fallback is set when optimization was abandoned for equal weights.
	Fallback bool
	// Warning explains the fallback.
	Warning    string
	Iterations int
}

// Solver computes long-only, fully invested allocations from a return window.
type Solver struct {
	periodsPerYear int
	maxIterations  int
	log            zerolog.Logger
}

// NewSolver creates a new weight solver.
func NewSolver(opts Options, log zerolog.Logger) *Solver {
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Solver{
		periodsPerYear: opts.PeriodsPerYear,
		maxIterations:  opts.MaxIterations,
		log:            log.With().Str("component", "weight_solver").Logger(),
	}
}

// Solve computes a weight vector for the window (rows = periods, columns = assets).
//
// Mathematical formulation:
//   - equal: w_i = 1/N, no optimization
//   - min_variance: minimize w'Σw
//   - max_sharpe: maximize μ'w / sqrt(w'Σw)
//
// Constraints:
//   - Σw = 1
//   - 0 ≤ w_i ≤ 1
//
// Numerical trouble (short window, singular covariance, non-convergence) never
// fails the call: the solution falls back to equal weights with Fallback set.
// Errors are returned only for malformed input.
func (s *Solver) Solve(window mat.Matrix, assets []string, objective domain.Objective) (Solution, error) {
	if len(assets) == 0 {
		return Solution{}, ErrNoAssets
	}
	_, cols := window.Dims()
	if cols != len(assets) {
		return Solution{}, fmt.Errorf("%w: window has %d columns for %d assets", ErrDimensionMismatch, cols, len(assets))
	}

	switch objective {
	case domain.ObjectiveEqual:
		return Solution{Weights: domain.EqualWeights(assets), Objective: objective}, nil
	case domain.ObjectiveMinVariance, domain.ObjectiveMaxSharpe:
	default:
		return Solution{}, fmt.Errorf("%w: %q", domain.ErrUnknownObjective, objective)
	}

	if len(assets) == 1 {
		w, _ := domain.NewWeightVector(assets, []float64{1})
		return Solution{Weights: w, Objective: objective}, nil
	}

	moments, err := EstimateMoments(window, s.periodsPerYear)
	if err != nil {
		return s.fallback(assets, objective, err), nil
	}
	if err := checkPositiveDefinite(moments.Cov); err != nil {
		return s.fallback(assets, objective, err), nil
	}

	obj, err := NewObjective(objective, moments)
	if err != nil {
		return Solution{}, err
	}

	weights, iterations, err := s.optimize(obj, len(assets))
	if err != nil {
		return s.fallback(assets, objective, err), nil
	}

	w, err := domain.NewWeightVector(assets, weights)
	if err != nil {
		return Solution{}, err
	}
	return Solution{Weights: w, Objective: objective, Iterations: iterations}, nil
}

// optimize minimizes obj over the probability simplex.
//
// Weights are parameterized as w = softmax(z), which keeps every candidate
// long-only and fully invested, so the unconstrained problem in z can be
// handed to a quasi-Newton method. The start point z = 0 is equal weights.
func (s *Solver) optimize(obj Objective, n int) ([]float64, int, error) {
	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			return obj.Value(softmax(z))
		},
		Grad: func(grad, z []float64) {
			w := softmax(z)
			gw := make([]float64, n)
			obj.Gradient(gw, w)
			// chain rule through softmax: ∂w_i/∂z_k = w_i(δ_ik - w_k)
			dot := floats.Dot(w, gw)
			for k := range grad {
				grad[k] = w[k] * (gw[k] - dot)
			}
		},
	}

	initial := make([]float64, n)
	settings := &optimize.Settings{
		MajorIterations:   s.maxIterations,
		GradientThreshold: 1e-9,
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil || !converged(result) {
		s.log.Debug().
			Err(err).
			Str("objective", obj.Name().String()).
			Msg("BFGS did not converge, retrying with Nelder-Mead")

		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrNotConverged, err)
		}
		if !converged(result) {
			return nil, result.MajorIterations, fmt.Errorf("%w: status=%v", ErrNotConverged, result.Status)
		}
	}

	weights := softmax(result.X)
	for _, w := range weights {
		if math.IsNaN(w) {
			return nil, result.MajorIterations, fmt.Errorf("%w: non-finite weights", ErrNotConverged)
		}
	}
	// Renormalize away rounding so the vector sums to 1.
	floats.Scale(1/floats.Sum(weights), weights)

	return weights, result.MajorIterations, nil
}

func converged(result *optimize.Result) bool {
	if result == nil {
		return false
	}
	switch result.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold, optimize.MethodConverge:
		return true
	}
	return false
}

func (s *Solver) fallback(assets []string, objective domain.Objective, cause error) Solution {
	s.log.Warn().
		Err(cause).
		Str("objective", objective.String()).
		Int("num_assets", len(assets)).
		Msg("Optimization failed, falling back to equal weights")

	return Solution{
		Weights:   domain.EqualWeights(assets),
		Objective: objective,
		Fallback:  true,
		Warning:   fmt.Sprintf("%s optimization fell back to equal weights: %v", objective, cause),
	}
}

// softmax maps unconstrained z onto the probability simplex.
func softmax(z []float64) []float64 {
	w := make([]float64, len(z))
	if len(z) == 0 {
		return w
	}
	maxZ := floats.Max(z)
	var sum float64
	for i, v := range z {
		w[i] = math.Exp(v - maxZ)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
