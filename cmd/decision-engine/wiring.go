package main

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inot-trading/core/internal/bridge"
	"github.com/inot-trading/core/internal/fusion"
	"github.com/inot-trading/core/internal/memory"
	"github.com/inot-trading/core/internal/symbol"
)

// defaultSymbolInfo infers broker-agnostic symbol metadata from the symbol
// name alone, for paper-trading mode where no live broker feed supplies it.
// FX pairs follow the standard 6-letter convention; anything else is
// treated as a crypto pair against a TickSize/contract shape typical of a
// major exchange's spot market.
func defaultSymbolInfo(sym string) symbol.Info {
	if len(sym) == 6 && isAllLetters(sym) {
		class := symbol.AssetFX
		if strings.HasSuffix(sym, "JPY") {
			class = symbol.AssetFXJPY
		}
		tick := 1e-4
		if class == symbol.AssetFXJPY {
			tick = 1e-2
		}
		return symbol.Info{
			Symbol: sym, AssetClass: class, TickSize: tick,
			ContractMultiplier: 100000, TickValueQuote: 10,
			MinLot: 0.01, MaxLot: 50, LotStep: 0.01,
			Base: sym[:3], Quote: sym[3:],
		}
	}
	return symbol.Info{
		Symbol: sym, AssetClass: symbol.AssetCrypto, TickSize: 0.01,
		ContractMultiplier: 1, TickValueQuote: 0.01,
		MinLot: 0.001, MaxLot: 100, LotStep: 0.001,
	}
}

func isAllLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// noopNewsFetcher satisfies fusion.NewsFetcher without a concrete news
// provider: spec.md's Non-goals exclude wiring a specific vendor, so the
// NewsStream runs wired but idle until one is configured.
type noopNewsFetcher struct{}

func (noopNewsFetcher) FetchSince(ctx context.Context, since time.Time) ([]fusion.NewsEvent, error) {
	return nil, nil
}

// noopEconFetcher is the EconomicCalendarFetcher equivalent of
// noopNewsFetcher.
type noopEconFetcher struct{}

func (noopEconFetcher) FetchWindow(ctx context.Context, windowStart, windowEnd time.Time) ([]fusion.EconomicEvent, error) {
	return nil, nil
}

// quotePump drains the fusion engine's latest PriceTick for symbol every
// interval, forwards OHLC into the Decision Engine's rolling history, and
// keeps the paper-trading adapter's quote fresh so Submit never rejects on
// a stale/missing quote. Runs until ctx is cancelled.
func quotePump(ctx context.Context, sym string, fe *fusion.Engine, eng priceSink, adapter *bridge.MockAdapter, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, ok := fe.LatestSnapshot()
			if !ok {
				continue
			}
			ev, ok := snap.Events[sym]
			if !ok {
				continue
			}
			tick, ok := ev.(fusion.PriceTick)
			if !ok {
				continue
			}
			eng.IngestPrice(tick.High, tick.Low, tick.Close)

			bid, ask := tick.Close, tick.Close
			if tick.Bid != nil {
				bid = *tick.Bid
			}
			if tick.Ask != nil {
				ask = *tick.Ask
			}
			adapter.SetQuote(sym, bridge.Quote{Bid: bid, Ask: ask, Open: true, AsOf: tick.Timestamp})
		}
	}
}

// refitCalibratorPeriodically rebuilds the Confidence Calibrator's isotonic
// mapping from the latest closed-trade outcomes every interval, per
// memory.calibration_refit_hours. A refit failure (too few samples yet) is
// logged and retried next tick rather than treated as fatal.
func refitCalibratorPeriodically(ctx context.Context, calibrator *memory.Calibrator, store *memory.Store, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := calibrator.Refit(ctx, store); err != nil {
				log.Warn().Err(err).Msg("calibrator refit failed")
			}
		}
	}
}

// priceSink is the one method quotePump needs from engine.Engine, kept
// local so this file doesn't import internal/engine just for a type name.
type priceSink interface {
	IngestPrice(high, low, close float64)
}
