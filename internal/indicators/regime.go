package indicators

// Regime labels the market condition FusedContext embeds for the
// orchestrator's Context agent and the Memory Store's pattern keying
// (spec.md §3, §4.3).
const (
	RegimeTrending = "TRENDING"
	RegimeRanging  = "RANGING"
	RegimeVolatile = "VOLATILE"
)

// RegimeResult is the market-regime classification handed into FusedContext.
type RegimeResult struct {
	Regime     string
	Volatility float64 // normalized 0..1, derived from Bollinger band width
}

// volatilityThresholdPct is the Bollinger band width (percent of the middle
// band) above which a trending market is reclassified as VOLATILE —
// direction is present but too erratic to size confidently.
const volatilityThresholdPct = 8.0

// normalizeVolatilityCap bounds the raw bb width percent used to compute the
// normalized 0..1 volatility score.
const normalizeVolatilityCap = 20.0

// DetectRegime classifies the market regime from ADX trend strength and
// Bollinger Band width: ADX >= 25 with contained band width is TRENDING;
// ADX >= 25 with wide bands is VOLATILE (trend present but erratic);
// anything else is RANGING.
func (s *Service) DetectRegime(adx ADXResult, bb BollingerBandsResult) RegimeResult {
	volatility := bb.Width / normalizeVolatilityCap
	if volatility > 1 {
		volatility = 1
	}
	if volatility < 0 {
		volatility = 0
	}

	regime := RegimeRanging
	switch {
	case adx.Value >= 25 && bb.Width > volatilityThresholdPct:
		regime = RegimeVolatile
	case adx.Value >= 25:
		regime = RegimeTrending
	}

	return RegimeResult{Regime: regime, Volatility: volatility}
}
