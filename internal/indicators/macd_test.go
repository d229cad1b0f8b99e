package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMACD_DefaultAndCustomPeriods(t *testing.T) {
	service := NewService()
	prices := generatePriceData(50, 100.0, 2.0)

	result, err := service.CalculateMACD(prices, 0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, result.MACD-result.Signal, result.Histogram, 0.001)
	assert.Contains(t, []string{"bullish", "bearish", "none"}, result.Crossover)

	_, err = service.CalculateMACD(prices, 8, 17, 9)
	require.NoError(t, err)
}

func TestCalculateMACD_InvalidPeriods(t *testing.T) {
	service := NewService()
	prices := generatePriceData(50, 100.0, 2.0)

	_, err := service.CalculateMACD(prices, 26, 12, 9)
	require.Error(t, err)

	_, err = service.CalculateMACD(prices[:20], 12, 26, 9)
	require.Error(t, err)
}

func TestMACDCrossovers(t *testing.T) {
	service := NewService()

	bullishPrices := make([]float64, 50)
	for i := range bullishPrices {
		bullishPrices[i] = 90.0 + float64(i)*0.5
	}

	bearishPrices := make([]float64, 50)
	for i := range bearishPrices {
		bearishPrices[i] = 120.0 - float64(i)*0.5
	}

	tests := []struct {
		name               string
		prices             []float64
		possibleCrossovers []string
	}{
		{name: "bullish trend", prices: bullishPrices, possibleCrossovers: []string{"bullish", "none"}},
		{name: "bearish trend", prices: bearishPrices, possibleCrossovers: []string{"bearish", "none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.CalculateMACD(tt.prices, 0, 0, 0)
			require.NoError(t, err)
			assert.Contains(t, tt.possibleCrossovers, result.Crossover)
		})
	}
}

func TestMACDResult_Sign(t *testing.T) {
	assert.Equal(t, 1, MACDResult{Histogram: 0.5}.Sign())
	assert.Equal(t, -1, MACDResult{Histogram: -0.5}.Sign())
	assert.Equal(t, 0, MACDResult{Histogram: 0}.Sign())
}

func generatePriceData(count int, start float64, volatility float64) []float64 {
	prices := make([]float64, count)
	prices[0] = start
	for i := 1; i < count; i++ {
		change := (float64(i%3) - 1.0) * volatility
		prices[i] = prices[i-1] + change
	}
	return prices
}
