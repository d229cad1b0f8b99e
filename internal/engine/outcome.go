package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/google/uuid"

	"github.com/inot-trading/core/internal/bridge"
	"github.com/inot-trading/core/internal/memory"
	"github.com/inot-trading/core/internal/symbol"
)

// outcomePollInterval is how often the outcome monitor checks each open
// trade for a close event.
const outcomePollInterval = 15 * time.Second

// MonitorOutcomes polls the Execution Bridge for every open trade until ctx
// is cancelled, closing out StoredDecisions with a TradeOutcome as soon as
// the broker reports the position closed, per §4.7's asynchronous outcome
// tracking.
func (e *Engine) MonitorOutcomes(ctx context.Context) error {
	ticker := time.NewTicker(outcomePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.pollOpenTrades(ctx)
		}
	}
}

func (e *Engine) pollOpenTrades(ctx context.Context) {
	e.mu.Lock()
	trades := make([]openTrade, 0, len(e.openTrades))
	for _, t := range e.openTrades {
		trades = append(trades, t)
	}
	e.mu.Unlock()

	for _, t := range trades {
		info, err := e.executor.GetOrderInfo(ctx, t.orderID)
		if err != nil {
			log.Warn().Err(err).Str("order_id", t.orderID).Msg("failed to poll order info")
			continue
		}
		if !info.Closed {
			continue
		}

		symInfo, err := e.normalizer.Info(ctx, t.symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", t.symbol).Msg("failed to resolve symbol info for outcome pips")
			continue
		}

		outcome := outcomeFromClose(t, info, symInfo)
		if err := outcome.Validate(); err != nil {
			log.Error().Err(err).Str("order_id", t.orderID).Msg("computed outcome failed invariant check")
		} else if err := e.store.SaveOutcome(ctx, outcome); err != nil {
			log.Error().Err(err).Str("order_id", t.orderID).Msg("failed to persist trade outcome")
		}

		e.mu.Lock()
		delete(e.openTrades, t.orderID)
		e.mu.Unlock()
	}
}

// outcomeFromClose computes pips and duration for a closed trade. Pip
// direction mirrors bridge.computeSlippagePips: positive pips for BUY means
// price rose, positive pips for SELL means price fell.
func outcomeFromClose(t openTrade, info bridge.OrderInfo, symInfo symbol.Info) memory.TradeOutcome {
	priceDelta := info.ExitPrice - t.entryPrice
	if t.direction == bridge.DirectionSell {
		priceDelta = -priceDelta
	}
	delta := priceDelta / pipSizeOrTick(symInfo)

	result := memory.ResultWin
	if delta < 0 {
		result = memory.ResultLoss
	} else if delta == 0 {
		result = memory.ResultBreakeven
	}

	entry := t.entryPrice
	exit := info.ExitPrice
	reason := memory.ExitReason(info.ExitReason)
	if reason == "" {
		reason = memory.ExitManual
	}

	decisionID, err := uuid.Parse(t.decisionID)
	if err != nil {
		log.Error().Err(err).Str("decision_id", t.decisionID).Msg("open trade had unparsable decision id")
	}

	return memory.TradeOutcome{
		DecisionID:      decisionID,
		ClosedAt:        time.Now().UTC(),
		Result:          result,
		Pips:            delta,
		DurationMinutes: int(time.Since(t.openedAt).Minutes()),
		ExitReason:      reason,
		FillPrice:       &entry,
		ExitPrice:       &exit,
	}
}

// pipSizeOrTick mirrors bridge's unexported helper of the same name: FX
// symbols convert through a fixed pip size, everything else through its
// tick size (falling back to 1 if neither is meaningful).
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
