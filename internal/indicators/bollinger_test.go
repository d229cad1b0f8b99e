package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBollingerBands_Structure(t *testing.T) {
	service := NewService()
	prices := generatePriceData(30, 100.0, 2.0)

	result, err := service.CalculateBollingerBands(prices, 0)
	require.NoError(t, err)
	assert.Greater(t, result.Upper, result.Middle)
	assert.Greater(t, result.Middle, result.Lower)
	assert.Positive(t, result.Width)
	assert.Contains(t, []string{"buy", "sell", "neutral"}, result.Signal)
	assert.Contains(t, []string{"LOWER", "MIDDLE", "UPPER"}, result.Bucket)
	assert.GreaterOrEqual(t, result.Position, 0.0)
	assert.LessOrEqual(t, result.Position, 1.0)

	_, err = service.CalculateBollingerBands(prices, 10)
	require.NoError(t, err)
}

func TestCalculateBollingerBands_InvalidPeriod(t *testing.T) {
	service := NewService()
	prices := generatePriceData(30, 100.0, 2.0)

	_, err := service.CalculateBollingerBands(prices, len(prices)+1)
	require.Error(t, err)
}

func TestBollingerBandsSignals(t *testing.T) {
	service := NewService()

	buyPrices := make([]float64, 30)
	for i := range buyPrices {
		if i < 20 {
			buyPrices[i] = 100.0 + float64(i%5)
		} else {
			buyPrices[i] = 90.0 - float64(i-20)*2.0
		}
	}

	sellPrices := make([]float64, 30)
	for i := range sellPrices {
		if i < 20 {
			sellPrices[i] = 100.0 + float64(i%5)
		} else {
			sellPrices[i] = 110.0 + float64(i-20)*2.0
		}
	}

	neutralPrices := make([]float64, 30)
	for i := range neutralPrices {
		neutralPrices[i] = 100.0 + float64(i%3)
	}

	tests := []struct {
		name            string
		prices          []float64
		possibleSignals []string
	}{
		{name: "price at lower band", prices: buyPrices, possibleSignals: []string{"buy", "neutral"}},
		{name: "price at upper band", prices: sellPrices, possibleSignals: []string{"sell", "neutral"}},
		{name: "price in middle range", prices: neutralPrices, possibleSignals: []string{"neutral"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.CalculateBollingerBands(tt.prices, 20)
			require.NoError(t, err)
			assert.Contains(t, tt.possibleSignals, result.Signal)
		})
	}
}

func TestBollingerBandsDifferentPeriods(t *testing.T) {
	service := NewService()
	prices := generatePriceData(50, 100.0, 2.0)

	for _, period := range []int{10, 20, 30} {
		result, err := service.CalculateBollingerBands(prices, period)
		require.NoError(t, err)
		assert.Greater(t, result.Upper, result.Middle)
		assert.Greater(t, result.Middle, result.Lower)
	}
}
