//nolint:goconst // Signal types are domain-specific strings
package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/volatility"
	"github.com/rs/zerolog/log"
)

// BollingerBandsResult is one Bollinger Bands reading, plus the normalized
// [0,1] position of price within the bands and its bucketed label.
type BollingerBandsResult struct {
	Upper    float64
	Middle   float64
	Lower    float64
	Width    float64 // band width, percent of the middle band
	Position float64 // 0 = at lower band, 1 = at upper band
	Bucket   string  // "LOWER", "MIDDLE", "UPPER" — the Memory Store's bb_position key
	Signal   string  // "buy", "sell", "neutral"
}

// CalculateBollingerBands computes Bollinger Bands over period (default 20)
// standard deviations (cinar/indicator fixes the multiplier at 2; std_dev
// callers that need non-2 bands must pre/post-scale explicitly).
func (s *Service) CalculateBollingerBands(prices []float64, period int) (BollingerBandsResult, error) {
	if period <= 0 {
		period = 20
	}
	if period > len(prices) {
		return BollingerBandsResult{}, fmt.Errorf("invalid period: %d (must be <= %d prices)", period, len(prices))
	}

	bbIndicator := volatility.NewBollingerBandsWithPeriod[float64](period)
	lowerChan, middleChan, upperChan := bbIndicator.Compute(toChannel(prices))

	var lowerValues, middleValues, upperValues []float64
	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lowerValues = append(lowerValues, l)
		middleValues = append(middleValues, m)
		upperValues = append(upperValues, u)
	}
	if len(middleValues) == 0 {
		return BollingerBandsResult{}, fmt.Errorf("no Bollinger Bands values calculated")
	}

	upper := upperValues[len(upperValues)-1]
	middle := middleValues[len(middleValues)-1]
	lower := lowerValues[len(lowerValues)-1]
	price := prices[len(prices)-1]

	width := 0.0
	if middle != 0 {
		width = ((upper - lower) / middle) * 100
	}

	position := 0.5
	if upper != lower {
		position = (price - lower) / (upper - lower)
	}
	if position < 0 {
		position = 0
	}
	if position > 1 {
		position = 1
	}

	bucket := "MIDDLE"
	signal := "neutral"
	switch {
	case position <= 0.2:
		bucket, signal = "LOWER", "buy"
	case position >= 0.8:
		bucket, signal = "UPPER", "sell"
	}

	log.Debug().Float64("position", position).Str("bucket", bucket).Msg("bollinger bands computed")
	return BollingerBandsResult{
		Upper: upper, Middle: middle, Lower: lower,
		Width: width, Position: position, Bucket: bucket, Signal: signal,
	}, nil
}
