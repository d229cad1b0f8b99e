package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inot-trading/core/internal/errs"
	"github.com/inot-trading/core/internal/symbol"
)

func validSignal() Signal {
	return Signal{Symbol: "EURUSD", Direction: DirectionBuy, Size: 0.1, Confidence: 0.7}
}

func TestValidateInput_RejectsEmptySymbol(t *testing.T) {
	sig := validSignal()
	sig.Symbol = ""
	err := validateInput(sig)
	require.Error(t, err)
	var ierr *errs.InputError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, errs.InputInvalid, ierr.Kind)
}

func TestValidateInput_RejectsBadConfidence(t *testing.T) {
	sig := validSignal()
	sig.Confidence = 1.5
	err := validateInput(sig)
	require.Error(t, err)
}

func TestValidateInput_RejectsNonPositiveSize(t *testing.T) {
	sig := validSignal()
	sig.Size = 0
	err := validateInput(sig)
	require.Error(t, err)
	var ierr *errs.InputError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, errs.SizeInvalid, ierr.Kind)
}

func TestValidateSymbol_RejectsWhenDisconnected(t *testing.T) {
	adapter := NewMockAdapter(symbol.Info{Symbol: "EURUSD", MinLot: 0.01, MaxLot: 10, LotStep: 0.01})
	_, err := validateSymbol(context.Background(), adapter, false, validSignal())
	require.Error(t, err)
	var serr *errs.SymbolError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, errs.AdapterDisconnected, serr.Kind)
}

func TestValidateSymbol_RejectsUnknownSymbol(t *testing.T) {
	adapter := NewMockAdapter()
	_, err := validateSymbol(context.Background(), adapter, true, validSignal())
	require.Error(t, err)
	var serr *errs.SymbolError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, errs.SymbolNotFound, serr.Kind)
}

func TestValidateSymbol_RejectsSizeOffLotStepGrid(t *testing.T) {
	adapter := NewMockAdapter(symbol.Info{Symbol: "EURUSD", MinLot: 0.01, MaxLot: 10, LotStep: 0.01})
	sig := validSignal()
	sig.Size = 0.015
	_, err := validateSymbol(context.Background(), adapter, true, sig)
	require.Error(t, err)
	var serr *errs.SymbolError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, errs.SymbolSizeInvalid, serr.Kind)
}

func TestValidateSymbol_RejectsSuspendedSymbol(t *testing.T) {
	adapter := NewMockAdapter(symbol.Info{Symbol: "EURUSD", MinLot: 0.01, MaxLot: 10, LotStep: 0.01})
	adapter.SetSuspended("EURUSD", true)
	_, err := validateSymbol(context.Background(), adapter, true, validSignal())
	require.Error(t, err)
	var serr *errs.SymbolError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, errs.SymbolNotTradable, serr.Kind)
}

func TestValidateSymbol_RejectsSizeBelowMinLot(t *testing.T) {
	adapter := NewMockAdapter(symbol.Info{Symbol: "EURUSD", MinLot: 0.5, MaxLot: 10, LotStep: 0.01})
	sig := validSignal()
	sig.Size = 0.1
	_, err := validateSymbol(context.Background(), adapter, true, sig)
	require.Error(t, err)
}

func TestValidateMarket_RejectsClosedMarket(t *testing.T) {
	err := validateMarket(Quote{Bid: 1.1, Ask: 1.1002, Open: false}, ValidationConfig{}, symbol.Info{}, validSignal())
	require.Error(t, err)
	var merr *errs.MarketError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, errs.MarketClosed, merr.Kind)
}

func TestValidateMarket_RejectsSpreadTooWide(t *testing.T) {
	info := symbol.Info{Symbol: "EURUSD", TickSize: 1e-4}
	cfg := ValidationConfig{MaxSpreadPips: 2}
	err := validateMarket(Quote{Bid: 1.1000, Ask: 1.1010, Open: true}, cfg, info, validSignal())
	require.Error(t, err)
	var merr *errs.MarketError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, errs.SpreadTooWide, merr.Kind)
}

func TestValidateMarket_RejectsStopLossTooClose(t *testing.T) {
	info := symbol.Info{Symbol: "EURUSD", TickSize: 1e-4}
	cfg := ValidationConfig{MinStopDistance: 0.0010}
	sl := 1.0999
	sig := validSignal()
	sig.StopLoss = &sl
	err := validateMarket(Quote{Bid: 1.0998, Ask: 1.1000, Open: true}, cfg, info, sig)
	require.Error(t, err)
	var merr *errs.MarketError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, errs.StopLossTooClose, merr.Kind)
}

func TestValidateMarket_AcceptsWithinTolerances(t *testing.T) {
	info := symbol.Info{Symbol: "EURUSD", TickSize: 1e-4}
	cfg := ValidationConfig{MaxSpreadPips: 5, MinStopDistance: 0.0005}
	sl := 1.0950
	sig := validSignal()
	sig.StopLoss = &sl
	err := validateMarket(Quote{Bid: 1.0998, Ask: 1.1000, Open: true}, cfg, info, sig)
	require.NoError(t, err)
}
