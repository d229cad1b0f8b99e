package bridge

import (
	"context"
	"math"

	"github.com/inot-trading/core/internal/errs"
	"github.com/inot-trading/core/internal/symbol"
)

// ValidationConfig carries the broker- and risk-independent thresholds the
// market layer checks against. MinStopDistance is expressed in price terms
// (already converted by the caller, typically via symbol.Normalizer).
type ValidationConfig struct {
	MaxSpreadPips   float64
	MinStopDistance float64
}

const lotStepEpsilon = 1e-9

// validateInput is layer 1 (§4.6): checks the Signal's own shape, before any
// adapter or market state is consulted.
func validateInput(sig Signal) error {
	if sig.Symbol == "" {
		return &errs.InputError{Kind: errs.InputInvalid, Message: "symbol is empty"}
	}
	if sig.Direction != DirectionBuy && sig.Direction != DirectionSell {
		return &errs.InputError{Kind: errs.InputInvalid, Message: "unrecognized direction"}
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return &errs.InputError{Kind: errs.InputInvalid, Message: "confidence out of [0,1]"}
	}
	if sig.Size <= 0 {
		return &errs.InputError{Kind: errs.SizeInvalid, Message: "size must be positive"}
	}
	return nil
}

// validateSymbol is layer 2: broker connectivity and symbol metadata.
func validateSymbol(ctx context.Context, adapter Adapter, connected bool, sig Signal) (symbol.Info, error) {
	if !connected {
		return symbol.Info{}, &errs.SymbolError{Kind: errs.AdapterDisconnected, Symbol: sig.Symbol, Message: "adapter not connected"}
	}

	info, err := adapter.SymbolInfo(ctx, sig.Symbol)
	if err != nil {
		return symbol.Info{}, &errs.SymbolError{Kind: errs.SymbolNotFound, Symbol: sig.Symbol, Message: err.Error()}
	}
	if info.Suspended {
		return info, &errs.SymbolError{Kind: errs.SymbolNotTradable, Symbol: sig.Symbol, Message: "symbol is halted or not currently tradable"}
	}

	if info.MinLot > 0 && sig.Size < info.MinLot {
		return info, &errs.SymbolError{Kind: errs.SymbolSizeInvalid, Symbol: sig.Symbol, Message: "size below min_lot"}
	}
	if info.MaxLot > 0 && sig.Size > info.MaxLot {
		return info, &errs.SymbolError{Kind: errs.SymbolSizeInvalid, Symbol: sig.Symbol, Message: "size above max_lot"}
	}
	if info.LotStep > 0 && !onStepGrid(sig.Size, info.LotStep) {
		return info, &errs.SymbolError{Kind: errs.SymbolSizeInvalid, Symbol: sig.Symbol, Message: "size not on lot_step grid"}
	}

	return info, nil
}

func onStepGrid(size, step float64) bool {
	ratio := size / step
	return math.Abs(ratio-math.Round(ratio)) < lotStepEpsilon
}

// validateMarket is layer 3: the live quote against configured tolerances.
func validateMarket(q Quote, cfg ValidationConfig, info symbol.Info, sig Signal) error {
	if !q.Open {
		return &errs.MarketError{Kind: errs.MarketClosed, Message: "market closed for symbol"}
	}
	if q.Bid <= 0 || q.Ask <= 0 || q.Ask < q.Bid {
		return &errs.MarketError{Kind: errs.NoQuote, Message: "no tradable quote"}
	}

	spread := q.Ask - q.Bid
	if cfg.MaxSpreadPips > 0 {
		spreadPips := spread / pipSizeOrTick(info)
		if spreadPips > cfg.MaxSpreadPips {
			return &errs.MarketError{Kind: errs.SpreadTooWide, Message: "spread exceeds configured maximum"}
		}
	}

	if cfg.MinStopDistance > 0 {
		entry := q.Ask
		if sig.Direction == DirectionSell {
			entry = q.Bid
		}
		if sig.StopLoss != nil && math.Abs(entry-*sig.StopLoss) < cfg.MinStopDistance {
			return &errs.MarketError{Kind: errs.StopLossTooClose, Message: "stop loss distance below broker minimum"}
		}
	}

	return nil
}

// pipSizeOrTick falls back to TickSize when the symbol has no defined pip
// size (crypto/CFD asset classes, per symbol.Info.pipSize's own fallback).
func pipSizeOrTick(info symbol.Info) float64 {
	switch info.AssetClass {
	case symbol.AssetFXJPY:
		return 1e-2
	case symbol.AssetFX:
		return 1e-4
	}
	if info.TickSize > 0 {
		return info.TickSize
	}
	return 1
}
