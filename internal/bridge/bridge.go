package bridge

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/inot-trading/core/internal/errs"
	"github.com/inot-trading/core/internal/resilience"
)

// Config bundles the bridge's own thresholds with the resilience policy
// wrapped around the adapter's PlaceOrder, grounded on exchange/service.go's
// composition of RetryConfig with the Exchange it protects.
type Config struct {
	Validation    ValidationConfig
	Breaker       resilience.BreakerConfig
	Retry         resilience.RetryConfig
}

// Bridge is the Execution Bridge of spec.md §4.6: it owns no state of its
// own beyond the adapter handle and connection flag, validates a Signal
// through three layers, and delegates the order itself to the adapter under
// circuit breaker and retry protection.
type Bridge struct {
	adapter   Adapter
	breaker   *resilience.CircuitBreaker
	retryCfg  resilience.RetryConfig
	validate  ValidationConfig
	connected bool
}

// NewBridge wires an Adapter behind one circuit breaker, named per
// cfg.Breaker.Name (typically "broker").
func NewBridge(adapter Adapter, cfg Config, registry *resilience.BreakerRegistry) *Bridge {
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "broker"
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = resilience.DefaultRetryConfig()
	}
	return &Bridge{
		adapter:  adapter,
		breaker:  registry.Register(cfg.Breaker),
		retryCfg: retryCfg,
		validate: cfg.Validation,
	}
}

// Connect opens the adapter's broker connection and marks the bridge ready
// to accept signals.
func (b *Bridge) Connect(ctx context.Context) error {
	if err := b.adapter.Connect(ctx); err != nil {
		return &errs.AdapterError{Kind: errs.AdapterErrorTransient, Op: "connect", Err: err}
	}
	b.connected = true
	return nil
}

// Disconnect closes the adapter's broker connection.
func (b *Bridge) Disconnect(ctx context.Context) error {
	b.connected = false
	return b.adapter.Disconnect(ctx)
}

// Submit runs the three validation layers, then places the order under the
// bridge's circuit breaker and retry policy, returning an ExecutionResult
// with slippage computed from the quoted entry vs the realized fill.
func (b *Bridge) Submit(ctx context.Context, sig Signal) (ExecutionResult, error) {
	if err := validateInput(sig); err != nil {
		return ExecutionResult{}, err
	}

	info, err := validateSymbol(ctx, b.adapter, b.connected, sig)
	if err != nil {
		return ExecutionResult{}, err
	}

	quote, err := b.adapter.Quote(ctx, sig.Symbol)
	if err != nil {
		return ExecutionResult{}, &errs.MarketError{Kind: errs.NoQuote, Message: err.Error()}
	}
	if err := validateMarket(quote, b.validate, info, sig); err != nil {
		return ExecutionResult{}, err
	}

	quotedEntry := quote.Ask
	if sig.Direction == DirectionSell {
		quotedEntry = quote.Bid
	}
	pip := pipSizeOrTick(info)

	var result ExecutionResult
	placeErr := b.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithRetry(ctx, b.retryCfg, isAdapterTransient, func(ctx context.Context) error {
			res, err := b.adapter.PlaceOrder(ctx, sig)
			if err != nil {
				return &errs.AdapterError{Kind: errs.AdapterErrorTransient, Op: "place_order", Err: err}
			}
			result = res
			return nil
		})
	})

	var circuitOpen *errs.CircuitOpenError
	if errors.As(placeErr, &circuitOpen) {
		return ExecutionResult{Success: false, Status: OrderStatusRejected, ErrorCode: "CIRCUIT_OPEN", ErrorMessage: placeErr.Error()}, placeErr
	}
	if placeErr != nil {
		log.Error().Err(placeErr).Str("symbol", sig.Symbol).Msg("place_order failed after retries")
		return ExecutionResult{Success: false, Status: OrderStatusRejected, ErrorCode: "ADAPTER_ERROR", ErrorMessage: placeErr.Error()}, placeErr
	}

	if result.Success && result.SlippagePips == 0 {
		result.SlippagePips = computeSlippagePips(quotedEntry, result.FillPrice, pip, sig.Direction)
	}

	log.Info().
		Str("symbol", sig.Symbol).
		Str("order_id", result.OrderID).
		Float64("fill_price", result.FillPrice).
		Float64("slippage_pips", result.SlippagePips).
		Msg("order submitted")

	return result, nil
}

// GetOrderInfo proxies to the adapter for outcome polling.
func (b *Bridge) GetOrderInfo(ctx context.Context, orderID string) (OrderInfo, error) {
	return b.adapter.GetOrderInfo(ctx, orderID)
}

// Ping proxies the adapter's health probe.
func (b *Bridge) Ping(ctx context.Context) error {
	return b.adapter.Ping(ctx)
}

// isAdapterTransient classifies an AdapterError by its Kind; any other error
// shape is treated as non-retryable since it did not come from the adapter
// boundary the bridge controls.
func isAdapterTransient(err error) bool {
	var adapterErr *errs.AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Retryable()
	}
	return false
}

// computeSlippagePips reports the signed distance, in pips, between the
// quoted entry and the realized fill: positive means the fill was worse
// than quoted (bought higher / sold lower), negative means it was better,
// matching §4.6's "quoted entry vs realized fill" requirement.
func computeSlippagePips(quotedEntry, fillPrice, pip float64, dir Direction) float64 {
	if pip <= 0 {
		pip = 1
	}
	delta := fillPrice - quotedEntry
	if dir == DirectionSell {
		delta = quotedEntry - fillPrice
	}
	return delta / pip
}
