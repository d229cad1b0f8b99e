package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inot-trading/core/internal/bridge"
	"github.com/inot-trading/core/internal/inot"
	"github.com/inot-trading/core/internal/memory"
	"github.com/inot-trading/core/internal/resilience"
	"github.com/inot-trading/core/internal/symbol"
)

func testEngine(t *testing.T, adapter bridge.Adapter) *Engine {
	t.Helper()
	registry := resilience.NewBreakerRegistry(prometheus.NewRegistry())
	br := bridge.NewBridge(adapter, bridge.Config{
		Validation: bridge.ValidationConfig{MaxSpreadPips: 5, MinStopDistance: 0},
		Breaker:    resilience.BreakerConfig{Name: "broker-test-" + uuid.NewString(), FailureThreshold: 5},
		Retry:      resilience.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, registry)
	require.NoError(t, br.Connect(context.Background()))

	provider := symbol.NewStaticProvider(symbol.Info{
		Symbol: "EURUSD", AssetClass: symbol.AssetFX, TickSize: 1e-4,
		MinLot: 0.01, MaxLot: 10, LotStep: 0.01,
	})
	normalizer := symbol.NewNormalizer(provider, nil, time.Minute)

	return New(Config{Symbol: "EURUSD", MinConfidence: 0.1, DefaultStopPips: 20, RiskPerTrade: 0.01},
		nil, nil, normalizer, nil, nil, nil, br, nil)
}

func TestEngine_Submit_RoundsSizeAndRecordsOpenTrade(t *testing.T) {
	adapter := bridge.NewMockAdapter(symbol.Info{
		Symbol: "EURUSD", AssetClass: symbol.AssetFX, TickSize: 1e-4,
		MinLot: 0.01, MaxLot: 10, LotStep: 0.01,
	})
	adapter.SetQuote("EURUSD", bridge.Quote{Bid: 1.0998, Ask: 1.1000, Open: true})
	e := testEngine(t, adapter)

	decision := inot.Decision{
		DecisionID: uuid.New(),
		Symbol:     "EURUSD",
		Action:     inot.ActionBuy,
		Lots:       0.123, // not on the 0.01 lot-step grid
		Confidence: 0.8,
	}

	err := e.submit(context.Background(), decision, inot.FusedContext{Symbol: "EURUSD"})
	require.NoError(t, err)

	e.mu.Lock()
	defer e.mu.Unlock()
	require.Len(t, e.openTrades, 1)
	for _, trade := range e.openTrades {
		assert.Equal(t, "EURUSD", trade.symbol)
		assert.Equal(t, bridge.DirectionBuy, trade.direction)
		assert.Equal(t, decision.DecisionID.String(), trade.decisionID)
	}
}

func TestEngine_Submit_FallsBackToRiskSizingWhenDecisionHasNoLots(t *testing.T) {
	adapter := bridge.NewMockAdapter(symbol.Info{
		Symbol: "EURUSD", AssetClass: symbol.AssetFX, TickSize: 1e-4,
		MinLot: 0.01, MaxLot: 10, LotStep: 0.01, TickValueQuote: 10, ContractMultiplier: 100000,
	})
	adapter.SetQuote("EURUSD", bridge.Quote{Bid: 1.0998, Ask: 1.1000, Open: true})
	e := testEngine(t, adapter)

	decision := inot.Decision{
		DecisionID: uuid.New(),
		Symbol:     "EURUSD",
		Action:     inot.ActionSell,
		Lots:       0, // rule-fallback placeholder cleared, forces risk-based sizing
		Confidence: 0.6,
	}

	fc := inot.FusedContext{Symbol: "EURUSD", Account: inot.AccountState{Balance: 10000}}
	err := e.submit(context.Background(), decision, fc)
	require.NoError(t, err)

	e.mu.Lock()
	defer e.mu.Unlock()
	require.Len(t, e.openTrades, 1)
}

func TestEngine_IngestPrice_FeedsRollingHistory(t *testing.T) {
	e := testEngine(t, bridge.NewMockAdapter(symbol.Info{Symbol: "EURUSD"}))

	e.IngestPrice(1.12, 1.10, 1.11)
	e.IngestPrice(1.13, 1.11, 1.12)

	highs, lows, closes := e.history.Snapshot()
	require.Len(t, closes, 2)
	assert.Equal(t, []float64{1.12, 1.13}, highs)
	assert.Equal(t, []float64{1.10, 1.11}, lows)
	assert.Equal(t, []float64{1.11, 1.12}, closes)
}

func TestDecisionToStored_MapsFieldsAndMarshalsAgentOutputs(t *testing.T) {
	decisionID := uuid.New()
	stop := 1.0950
	decision := inot.Decision{
		DecisionID: decisionID,
		Symbol:     "EURUSD",
		Action:     inot.ActionBuy,
		Lots:       0.5,
		StopLoss:   &stop,
		Confidence: 0.77,
		Vetoed:     true,
		VetoReason: "spread too wide",
		Reasoning:  "test",
		Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		AgentOutputs: inot.AgentOutputs{
			Signal: inot.SignalOutput{Action: inot.ActionBuy, Confidence: 0.8},
		},
	}
	fc := inot.FusedContext{Price: 1.1, RSI: 55, MACD: 0.002, BBPosition: 0.4, Regime: "trending"}

	stored := decisionToStored(decision, fc)

	assert.Equal(t, decisionID, stored.ID)
	assert.Equal(t, memory.Action(inot.ActionBuy), stored.Action)
	assert.Equal(t, 0.5, stored.Lots)
	assert.Equal(t, &stop, stored.StopLoss)
	assert.True(t, stored.Vetoed)
	assert.Equal(t, "spread too wide", stored.VetoReason)
	assert.Equal(t, 1.1, stored.Context.Price)
	assert.Equal(t, "trending", stored.Context.Regime)
	assert.NotEmpty(t, stored.SignalOutput)
}
