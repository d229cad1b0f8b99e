package indicators

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// ADXResult is one Average Directional Index reading.
type ADXResult struct {
	Value    float64
	Strength string // "weak", "strong", "very_strong"
}

// CalculateADX computes the Average Directional Index manually — ADX has no
// implementation in cinar/indicator/v2, so it is hand-rolled the same way
// the teacher does (see DESIGN.md's standard-library justification).
func (s *Service) CalculateADX(high, low, close []float64, period int) (ADXResult, error) {
	if len(high) != len(low) || len(high) != len(close) {
		return ADXResult{}, fmt.Errorf("high, low, and close series must have the same length")
	}
	if period <= 0 {
		period = 14
	}
	if minRequired := period * 2; len(close) < minRequired {
		return ADXResult{}, fmt.Errorf("insufficient data: need at least %d prices, got %d", minRequired, len(close))
	}

	adx := calculateADXManual(high, low, close, period)
	if adx == 0 {
		return ADXResult{}, fmt.Errorf("ADX calculation failed")
	}

	strength := "weak"
	switch {
	case adx >= 50:
		strength = "very_strong"
	case adx >= 25:
		strength = "strong"
	}

	log.Debug().Float64("adx", adx).Str("strength", strength).Msg("adx computed")
	return ADXResult{Value: adx, Strength: strength}, nil
}

func calculateADXManual(high, low, close []float64, period int) float64 {
	n := len(close)
	if n < period*2 {
		return 0
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < n; i++ {
		tr[i] = math.Max(high[i]-low[i],
			math.Max(math.Abs(high[i]-close[i-1]),
				math.Abs(low[i]-close[i-1])))

		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := smoothWilder(tr, period)
	smoothPlusDM := smoothWilder(plusDM, period)
	smoothMinusDM := smoothWilder(minusDM, period)

	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	dx := make([]float64, n)

	for i := period; i < n; i++ {
		if smoothTR[i] != 0 {
			plusDI[i] = 100 * smoothPlusDM[i] / smoothTR[i]
			minusDI[i] = 100 * smoothMinusDM[i] / smoothTR[i]

			diSum := plusDI[i] + minusDI[i]
			if diSum != 0 {
				dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / diSum
			}
		}
	}

	adxValues := smoothWilder(dx, period)
	return adxValues[n-1]
}

// smoothWilder applies Wilder's smoothing method.
func smoothWilder(data []float64, period int) []float64 {
	n := len(data)
	result := make([]float64, n)
	if n < period {
		return result
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < n; i++ {
		result[i] = (result[i-1]*float64(period-1) + data[i]) / float64(period)
	}
	return result
}
