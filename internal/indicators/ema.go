package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog/log"
)

// EMAResult is one Exponential Moving Average reading against the latest
// price.
type EMAResult struct {
	Value float64
	Trend string // "bullish", "bearish", "neutral"
}

// CalculateEMA computes the EMA over period and classifies trend direction
// from the latest price's position relative to it.
func (s *Service) CalculateEMA(prices []float64, period int) (EMAResult, error) {
	if period <= 0 || period > len(prices) {
		return EMAResult{}, fmt.Errorf("invalid period: %d (must be between 1 and %d)", period, len(prices))
	}

	emaIndicator := trend.NewEmaWithPeriod[float64](period)
	emaValues := drain(emaIndicator.Compute(toChannel(prices)))
	if len(emaValues) == 0 {
		return EMAResult{}, fmt.Errorf("no EMA values calculated")
	}

	current := emaValues[len(emaValues)-1]
	price := prices[len(prices)-1]

	trendSignal := "neutral"
	switch {
	case price > current:
		trendSignal = "bullish"
	case price < current:
		trendSignal = "bearish"
	}

	log.Debug().Float64("ema", current).Str("trend", trendSignal).Msg("ema computed")
	return EMAResult{Value: current, Trend: trendSignal}, nil
}
