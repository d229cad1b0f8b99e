package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/rs/zerolog/log"
)

// RSIResult is one RSI reading with its interpreted signal.
type RSIResult struct {
	Value  float64
	Signal string // "oversold", "overbought", "neutral"
}

// CalculateRSI computes the Relative Strength Index of the given price
// series over period (default 14 when period <= 0).
func (s *Service) CalculateRSI(prices []float64, period int) (RSIResult, error) {
	if period <= 0 {
		period = 14
	}
	if period > len(prices) {
		return RSIResult{}, fmt.Errorf("invalid period: %d (must be <= %d prices)", period, len(prices))
	}

	rsiIndicator := momentum.NewRsiWithPeriod[float64](period)
	rsiValues := drain(rsiIndicator.Compute(toChannel(prices)))
	if len(rsiValues) == 0 {
		return RSIResult{}, fmt.Errorf("no RSI values calculated")
	}

	current := rsiValues[len(rsiValues)-1]
	signal := "neutral"
	switch {
	case current < 30:
		signal = "oversold"
	case current > 70:
		signal = "overbought"
	}

	log.Debug().Float64("rsi", current).Str("signal", signal).Msg("rsi computed")
	return RSIResult{Value: current, Signal: signal}, nil
}
