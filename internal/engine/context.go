package engine

import (
	"fmt"
	"time"

	"github.com/inot-trading/core/internal/fusion"
	"github.com/inot-trading/core/internal/indicators"
	"github.com/inot-trading/core/internal/inot"
)

// minHistoryForIndicators is the shortest candle history that lets every
// Tool Stack calculation run: MACD's default slow(26)+signal(9) periods
// dominate the other indicators' minimums.
const minHistoryForIndicators = 35

// ErrInsufficientHistory is returned by buildFusedContext when the rolling
// price window hasn't yet filled enough candles for the Tool Stack.
var ErrInsufficientHistory = fmt.Errorf("insufficient price history for indicator calculations")

// buildFusedContext runs the Tool Stack against the current price history
// and layers in the latest snapshot's news/economic events and the
// caller-supplied account/risk context, per spec.md §3's FusedContext.
func buildFusedContext(
	symbol string,
	referenceTime time.Time,
	hist *PriceHistory,
	snap fusion.FusedSnapshot,
	svc *indicators.Service,
	account inot.AccountState,
	risk inot.RiskParameters,
) (inot.FusedContext, error) {
	highs, lows, closes := hist.Snapshot()
	if len(closes) < minHistoryForIndicators {
		return inot.FusedContext{}, ErrInsufficientHistory
	}

	rsi, err := svc.CalculateRSI(closes, 0)
	if err != nil {
		return inot.FusedContext{}, fmt.Errorf("rsi: %w", err)
	}
	macd, err := svc.CalculateMACD(closes, 0, 0, 0)
	if err != nil {
		return inot.FusedContext{}, fmt.Errorf("macd: %w", err)
	}
	bb, err := svc.CalculateBollingerBands(closes, 0)
	if err != nil {
		return inot.FusedContext{}, fmt.Errorf("bollinger: %w", err)
	}
	ema, err := svc.CalculateEMA(closes, 20)
	if err != nil {
		return inot.FusedContext{}, fmt.Errorf("ema: %w", err)
	}
	adx, err := svc.CalculateADX(highs, lows, closes, 0)
	if err != nil {
		return inot.FusedContext{}, fmt.Errorf("adx: %w", err)
	}

	regime := svc.DetectRegime(adx, bb)
	composite := svc.CompositeSignal(rsi, macd, bb, ema)

	fc := inot.FusedContext{
		Symbol:         symbol,
		ReferenceTime:  referenceTime,
		Price:          closes[len(closes)-1],
		RSI:            rsi.Value,
		MACD:           macd.MACD,
		MACDSignalLine: macd.Signal,
		MACDHistogram:  macd.Histogram,
		BBUpper:        bb.Upper,
		BBMiddle:       bb.Middle,
		BBLower:        bb.Lower,
		BBPosition:     bb.Position,
		Regime:         regime.Regime,
		Volatility:     regime.Volatility,

		CompositeSignal: composite.Signal,
		AgreementScore:  composite.Agreement,

		Account: account,
		Risk:    risk,
	}

	for _, event := range snap.Events {
		switch e := event.(type) {
		case fusion.NewsEvent:
			fc.LatestNews = append(fc.LatestNews, inot.NewsHeadline{
				Title:          e.Title,
				SentimentScore: e.SentimentScore,
				IsMajorEvent:   e.IsMajorEvent,
			})
		case fusion.EconomicEvent:
			fc.UpcomingEvents = append(fc.UpcomingEvents, inot.UpcomingEvent{
				Category:    e.Category,
				Impact:      string(e.Impact),
				ScheduledIn: e.ScheduledUTC.Sub(referenceTime),
			})
		}
	}

	return fc, nil
}

// isFresh reports whether a snapshot is fit to feed the orchestrator:
// fully synced, with no missing required streams. A degraded snapshot
// still feeds the rule-based fallback, which tolerates partial data.
func isFresh(snap fusion.FusedSnapshot) bool {
	return snap.SyncStatus == fusion.SyncSynced && len(snap.Missing) == 0
}
