package bridge

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/inot-trading/core/internal/symbol"
)

// MockAdapter is a deterministic, in-memory Adapter for testing the bridge
// and the Decision Engine without a live broker, grounded on
// exchange.MockExchange's slippage/market-impact simulation.
type MockAdapter struct {
	mu        sync.RWMutex
	connected bool
	symbols   map[string]symbol.Info
	quotes    map[string]Quote
	orders    map[string]ExecutionResult
	rng       *rand.Rand

	baseSlippagePips float64
	marketImpact     float64 // extra pips per lot above impactThreshold
	maxSlippagePips  float64
	impactThreshold  float64 // lots above which market impact starts applying
}

// NewMockAdapter builds a mock adapter seeded with symbol metadata and
// default slippage parameters matching exchange.NewMockExchange's
// magnitudes (scaled from price units to pips for FX-shaped symbols).
func NewMockAdapter(infos ...symbol.Info) *MockAdapter {
	table := make(map[string]symbol.Info, len(infos))
	for _, i := range infos {
		table[i.Symbol] = i
	}
	return &MockAdapter{
		symbols:          table,
		quotes:           make(map[string]Quote),
		orders:           make(map[string]ExecutionResult),
		rng:              rand.New(rand.NewSource(1)),
		baseSlippagePips: 0.2,
		marketImpact:     0.05,
		maxSlippagePips:  3.0,
		impactThreshold:  1.0,
	}
}

// SetQuote installs the current bid/ask for a symbol. Tests and the
// Decision Engine's paper-trading mode call this before PlaceOrder.
func (m *MockAdapter) SetQuote(sym string, q Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[sym] = q
}

// SetSuspended flips a symbol's tradability, letting tests exercise the
// Execution Bridge's SymbolNotTradable rejection without a live broker halt.
func (m *MockAdapter) SetSuspended(sym string, suspended bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.symbols[sym]
	info.Suspended = suspended
	m.symbols[sym] = info
}

func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockAdapter) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *MockAdapter) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return fmt.Errorf("mock adapter not connected")
	}
	return nil
}

func (m *MockAdapter) SymbolInfo(ctx context.Context, sym string) (symbol.Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.symbols[sym]
	if !ok {
		return symbol.Info{}, fmt.Errorf("symbol %s not found", sym)
	}
	return info, nil
}

func (m *MockAdapter) Quote(ctx context.Context, sym string) (Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[sym]
	if !ok {
		return Quote{}, fmt.Errorf("no quote for %s", sym)
	}
	return q, nil
}

// PlaceOrder simulates an immediate market fill with slippage scaled by
// order size, mirroring exchange.MockExchange.calculateSlippage's
// base-plus-impact model.
func (m *MockAdapter) PlaceOrder(ctx context.Context, sig Signal) (ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ExecutionResult{}, fmt.Errorf("mock adapter not connected")
	}

	q, ok := m.quotes[sig.Symbol]
	if !ok || !q.Open {
		return ExecutionResult{Success: false, Status: OrderStatusRejected, ErrorCode: "NO_QUOTE", ErrorMessage: "no quote available"}, nil
	}

	info := m.symbols[sig.Symbol]
	pip := pipSizeOrTick(info)
	slippagePips := m.calculateSlippage(sig.Size)

	quotedEntry := q.Ask
	fillPrice := q.Ask + slippagePips*pip
	if sig.Direction == DirectionSell {
		quotedEntry = q.Bid
		fillPrice = q.Bid - slippagePips*pip
	}

	orderID := uuid.NewString()
	result := ExecutionResult{
		Success:      true,
		OrderID:      orderID,
		FillPrice:    fillPrice,
		FillVolume:   sig.Size,
		SlippagePips: computeSlippagePips(quotedEntry, fillPrice, pip, sig.Direction),
		Status:       OrderStatusFilled,
	}
	m.orders[orderID] = result
	return result, nil
}

// calculateSlippage returns simulated slippage in pips: a fixed base plus a
// component proportional to size above impactThreshold, capped at
// maxSlippagePips — exchange.MockExchange's shape, generalized to pips.
func (m *MockAdapter) calculateSlippage(size float64) float64 {
	slip := m.baseSlippagePips
	if size > m.impactThreshold {
		slip += (size - m.impactThreshold) * m.marketImpact
	}
	jitter := m.rng.Float64() * m.baseSlippagePips * 0.5
	slip += jitter
	if slip > m.maxSlippagePips {
		slip = m.maxSlippagePips
	}
	return slip
}

func (m *MockAdapter) GetOrderInfo(ctx context.Context, orderID string) (OrderInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.orders[orderID]
	if !ok {
		return OrderInfo{}, fmt.Errorf("order %s not found", orderID)
	}
	// The mock fills immediately and never simulates a later close, so
	// polling it never reports a position as closed.
	return OrderInfo{Closed: false}, nil
}
