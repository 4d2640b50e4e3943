package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMaxStreaks(t *testing.T) {
	tests := []struct {
		name     string
		returns  []float64
		wantUp   int
		wantDown int
	}{
		{"empty", nil, 0, 0},
		{"alternating", []float64{0.01, -0.01, 0.01, -0.01}, 1, 1},
		{"runs", []float64{0.01, 0.02, 0.03, -0.01, -0.02, 0.01}, 3, 2},
		{"flat extends up streak", []float64{0.01, 0, 0, 0.02, -0.01}, 4, 1},
		{"flat extends down streak", []float64{-0.01, 0, -0.02, 0.01}, 1, 3},
		{"leading flats unclassified", []float64{0, 0, 0.01, 0.01}, 2, 0},
		{"all flat", []float64{0, 0, 0}, 0, 0},
		{"only down", []float64{-0.01, -0.01}, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, down := CalculateMaxStreaks(tt.returns)
			assert.Equal(t, tt.wantUp, up)
			assert.Equal(t, tt.wantDown, down)
		})
	}
}
