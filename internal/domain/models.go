// Package domain provides core domain models and types.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ReturnObservation is one periodic return of one instrument on one date.
type ReturnObservation struct {
	Date    time.Time `json:"date" msgpack:"date"`
	AssetID string    `json:"asset_id" msgpack:"asset_id"`
	Return  float64   `json:"period_return" msgpack:"period_return"`
}

// LevelObservation is one point of a tracked index: its level (close) and its periodic return.
type LevelObservation struct {
	Date   time.Time `json:"date" msgpack:"date"`
	Level  float64   `json:"level" msgpack:"level"`
	Return float64   `json:"period_return" msgpack:"period_return"`
}

// Objective selects how the weight solver allocates across assets.
type Objective string

const (
	// ObjectiveEqual assigns 1/N to every asset
	ObjectiveEqual Objective = "equal"
	// ObjectiveMinVariance minimizes annualized portfolio variance
	ObjectiveMinVariance Objective = "min_variance"
	// ObjectiveMaxSharpe maximizes expected return per unit of volatility
	ObjectiveMaxSharpe Objective = "max_sharpe"
)

// ErrUnknownObjective is returned when an objective name cannot be parsed.
var ErrUnknownObjective = errors.New("unknown objective")

// ParseObjective parses an objective name. Accepts the canonical names,
// their upper-case forms and a few common aliases.
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "equal", "equal_weight", "average_w":
		return ObjectiveEqual, nil
	case "min_variance", "min_var", "min_volatility":
		return ObjectiveMinVariance, nil
	case "max_sharpe":
		return ObjectiveMaxSharpe, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownObjective, s)
}

// String returns the canonical objective name.
func (o Objective) String() string {
	return string(o)
}

// WeightVector is an ordered allocation: Weights[i] belongs to Assets[i].
// Weights are long-only and fully invested (each in [0, 1], summing to 1).
type WeightVector struct {
	Assets  []string  `json:"assets"`
	Weights []float64 `json:"weights"`
}

// NewWeightVector copies assets and weights into a new vector.
func NewWeightVector(assets []string, weights []float64) (WeightVector, error) {
	if len(assets) != len(weights) {
		return WeightVector{}, fmt.Errorf("weight vector has %d assets but %d weights", len(assets), len(weights))
	}
	a := make([]string, len(assets))
	copy(a, assets)
	w := make([]float64, len(weights))
	copy(w, weights)
	return WeightVector{Assets: a, Weights: w}, nil
}

// EqualWeights returns 1/N for each asset.
func EqualWeights(assets []string) WeightVector {
	w := make([]float64, len(assets))
	for i := range w {
		w[i] = 1.0 / float64(len(assets))
	}
	a := make([]string, len(assets))
	copy(a, assets)
	return WeightVector{Assets: a, Weights: w}
}

// Get returns the weight of an asset, or 0 when the asset is not in the vector.
func (v WeightVector) Get(asset string) float64 {
	for i, a := range v.Assets {
		if a == asset {
			return v.Weights[i]
		}
	}
	return 0
}

// Sum returns the total weight.
func (v WeightVector) Sum() float64 {
	var sum float64
	for _, w := range v.Weights {
		sum += w
	}
	return sum
}

// Map returns the vector as asset -> weight.
func (v WeightVector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Assets))
	for i, a := range v.Assets {
		m[a] = v.Weights[i]
	}
	return m
}

// Valid reports whether every weight lies in [0, 1] and the sum is 1 within tol.
func (v WeightVector) Valid(tol float64) bool {
	for _, w := range v.Weights {
		if math.IsNaN(w) || w < -tol || w > 1+tol {
			return false
		}
	}
	return len(v.Weights) > 0 && math.Abs(v.Sum()-1) <= tol
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
