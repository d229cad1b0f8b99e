package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog/log"
)

// MACDResult is one MACD/signal-line reading.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
	Crossover string // "bullish", "bearish", "none"
}

// Sign returns -1/0/+1 for the histogram's sign, the bucket the Memory
// Store's Pattern.MACDSignal and find_similar_patterns key on (§4.3).
func (r MACDResult) Sign() int {
	switch {
	case r.Histogram > 0:
		return 1
	case r.Histogram < 0:
		return -1
	default:
		return 0
	}
}

// CalculateMACD computes MACD/signal/histogram and the most recent
// bullish/bearish crossover over a price series, with fast/slow/signal
// periods defaulting to 12/26/9 when zero.
func (s *Service) CalculateMACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) (MACDResult, error) {
	if fastPeriod <= 0 {
		fastPeriod = 12
	}
	if slowPeriod <= 0 {
		slowPeriod = 26
	}
	if signalPeriod <= 0 {
		signalPeriod = 9
	}
	if fastPeriod >= slowPeriod {
		return MACDResult{}, fmt.Errorf("fast period (%d) must be less than slow period (%d)", fastPeriod, slowPeriod)
	}
	if minRequired := slowPeriod + signalPeriod; len(prices) < minRequired {
		return MACDResult{}, fmt.Errorf("insufficient data: need at least %d prices, got %d", minRequired, len(prices))
	}

	macdIndicator := trend.NewMacdWithPeriod[float64](fastPeriod, slowPeriod, signalPeriod)
	macdChan, signalChan := macdIndicator.Compute(toChannel(prices))

	var macdValues, signalValues []float64
	for {
		m, mok := <-macdChan
		sv, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdValues = append(macdValues, m)
		signalValues = append(signalValues, sv)
	}
	if len(macdValues) == 0 {
		return MACDResult{}, fmt.Errorf("no MACD values calculated")
	}

	currentMACD := macdValues[len(macdValues)-1]
	currentSignal := signalValues[len(signalValues)-1]
	currentHistogram := currentMACD - currentSignal

	crossover := "none"
	if len(macdValues) >= 2 {
		prevHistogram := macdValues[len(macdValues)-2] - signalValues[len(signalValues)-2]
		if prevHistogram <= 0 && currentHistogram > 0 {
			crossover = "bullish"
		}
		if prevHistogram >= 0 && currentHistogram < 0 {
			crossover = "bearish"
		}
	}

	log.Debug().Float64("macd", currentMACD).Float64("signal", currentSignal).Str("crossover", crossover).Msg("macd computed")
	return MACDResult{MACD: currentMACD, Signal: currentSignal, Histogram: currentHistogram, Crossover: crossover}, nil
}
