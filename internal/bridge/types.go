// Package bridge implements the Execution Bridge (spec.md §4.6): a
// three-layer validation pipeline in front of a broker-agnostic Adapter,
// wrapped in a circuit breaker and retry policy, producing an
// ExecutionResult with realized slippage. The bridge never holds money and
// never records positions or history; the Memory Store owns that.
package bridge

import (
	"context"
	"time"

	"github.com/inot-trading/core/internal/symbol"
)

// Direction is the trade side of a Signal, grounded on exchange.OrderSide
// but renamed to match the Decision Engine's vocabulary.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Signal is what the Decision Engine hands the bridge after a Decision is
// sized by the Symbol Normalizer. It is distinct from inot.Decision: by the
// time it reaches the bridge, sizing and direction are already resolved.
type Signal struct {
	Symbol     string
	Direction  Direction
	Size       float64
	Confidence float64
	StopLoss   *float64
	TakeProfit *float64
}

// OrderStatus mirrors exchange.OrderStatus, trimmed to what the bridge
// itself needs to report.
type OrderStatus string

const (
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ExecutionResult is the spec.md §3 ExecutionResult: the bridge's sole
// output, carrying enough provenance for the Memory Store to record an
// outcome without touching the adapter again.
type ExecutionResult struct {
	Success      bool
	OrderID      string
	FillPrice    float64
	FillVolume   float64
	SlippagePips float64
	Status       OrderStatus
	ErrorCode    string
	ErrorMessage string
}

// OrderInfo is the broker adapter's get_order_info response shape (§6):
// enough to tell the Outcome Monitor whether and how a position closed.
type OrderInfo struct {
	Closed     bool
	ExitPrice  float64
	ExitReason string
}

// Quote is the market-layer data the bridge needs to validate and price an
// order: current bid/ask and whether the market is open for the symbol.
type Quote struct {
	Bid    float64
	Ask    float64
	Open   bool
	AsOf   time.Time
}

// Adapter is the broker-agnostic interface of spec.md §4.6 and §6: every
// concrete broker integration, and the mock used for deterministic testing,
// implements this. It composes symbol.Provider so the bridge and the
// Symbol Normalizer can share one source of broker metadata.
type Adapter interface {
	symbol.Provider

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	PlaceOrder(ctx context.Context, sig Signal) (ExecutionResult, error)
	GetOrderInfo(ctx context.Context, orderID string) (OrderInfo, error)
	Quote(ctx context.Context, sym string) (Quote, error)
	Ping(ctx context.Context) error
}
