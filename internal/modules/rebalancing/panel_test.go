package rebalancing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/backtester/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPanel_PivotsAndZeroFills(t *testing.T) {
	observations := []domain.ReturnObservation{
		{Date: date(2024, 1, 2), AssetID: "B", Return: 0.02},
		{Date: date(2024, 1, 2), AssetID: "A", Return: 0.01},
		{Date: date(2024, 1, 3), AssetID: "A", Return: -0.01},
		// B is not traded on the 3rd; C lists on the 4th
		{Date: date(2024, 1, 4), AssetID: "C", Return: 0.05},
		{Date: date(2024, 1, 4), AssetID: "B", Return: 0.03},
	}

	panel, err := NewPanel(observations)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, panel.Assets())
	assert.Equal(t, []time.Time{date(2024, 1, 2), date(2024, 1, 3), date(2024, 1, 4)}, panel.Dates())
	assert.Equal(t, []float64{0.01, 0.02, 0}, panel.Row(0))
	assert.Equal(t, []float64{-0.01, 0, 0}, panel.Row(1))
	assert.Equal(t, []float64{0, 0.03, 0.05}, panel.Row(2))

	c, ok := panel.AssetReturns("C")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 0.05}, c)

	_, ok = panel.AssetReturns("Z")
	assert.False(t, ok)
}

func TestNewPanel_NormalizesToCalendarDays(t *testing.T) {
	observations := []domain.ReturnObservation{
		{Date: time.Date(2024, 1, 2, 16, 30, 0, 0, time.UTC), AssetID: "A", Return: 0.01},
		{Date: date(2024, 1, 2), AssetID: "B", Return: 0.02},
	}

	panel, err := NewPanel(observations)
	require.NoError(t, err)
	assert.Equal(t, 1, panel.Len())
	assert.Equal(t, []float64{0.01, 0.02}, panel.Row(0))
}

func TestNewPanel_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		observations []domain.ReturnObservation
		want         error
	}{
		{"empty", nil, ErrEmptyPanel},
		{
			"missing asset id",
			[]domain.ReturnObservation{{Date: date(2024, 1, 2), Return: 0.01}},
			ErrInvalidObservation,
		},
		{
			"non-finite return",
			[]domain.ReturnObservation{{Date: date(2024, 1, 2), AssetID: "A", Return: math.Inf(1)}},
			ErrInvalidObservation,
		},
		{
			"duplicate date",
			[]domain.ReturnObservation{
				{Date: date(2024, 1, 2), AssetID: "A", Return: 0.01},
				{Date: date(2024, 1, 2), AssetID: "A", Return: 0.02},
			},
			ErrUnorderedObservations,
		},
		{
			"out of order",
			[]domain.ReturnObservation{
				{Date: date(2024, 1, 3), AssetID: "A", Return: 0.01},
				{Date: date(2024, 1, 2), AssetID: "A", Return: 0.02},
			},
			ErrUnorderedObservations,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPanel(tt.observations)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestPanel_WindowIsSnapshot(t *testing.T) {
	panel, err := NewPanel([]domain.ReturnObservation{
		{Date: date(2024, 1, 2), AssetID: "A", Return: 0.01},
		{Date: date(2024, 1, 3), AssetID: "A", Return: 0.02},
		{Date: date(2024, 1, 4), AssetID: "A", Return: 0.03},
	})
	require.NoError(t, err)

	window := panel.Window(1, 3)
	rows, cols := window.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 1, cols)
	assert.Equal(t, 0.02, window.At(0, 0))

	window.Set(0, 0, 99)
	assert.Equal(t, []float64{0.02}, panel.Row(1))
}

func TestMonthEnds(t *testing.T) {
	dates := []time.Time{
		date(2023, 12, 28), date(2023, 12, 29),
		date(2024, 1, 2), date(2024, 1, 31),
		date(2024, 2, 1), date(2024, 2, 27),
		date(2024, 3, 1),
	}

	assert.Equal(t, []time.Time{
		date(2023, 12, 29), date(2024, 1, 31), date(2024, 2, 27), date(2024, 3, 1),
	}, MonthEnds(dates))
	assert.Empty(t, MonthEnds(nil))
}
