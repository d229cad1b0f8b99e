package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inot-trading/core/internal/bridge"
	"github.com/inot-trading/core/internal/inot"
	"github.com/inot-trading/core/internal/memory"
	"github.com/inot-trading/core/internal/symbol"
)

// IngestPrice feeds one OHLC observation into the engine's rolling price
// history. A caller drains the fusion engine's PriceTick events for this
// symbol and forwards high/low/close here; the Decision Engine has no
// subscription of its own onto the fusion streams, per Component F's
// Provider-abstraction boundary.
func (e *Engine) IngestPrice(high, low, close float64) {
	e.history.Push(high, low, close)
}

// RunOnce executes a single decision iteration, spec.md §4.7 steps 1-8.
func (e *Engine) RunOnce(ctx context.Context) error {
	err := e.runOnce(ctx)
	e.setHealth(err)
	return err
}

func (e *Engine) runOnce(ctx context.Context) error {
	// 1. Pull the latest FusedSnapshot.
	snap, ok := e.fusion.LatestSnapshot()
	if !ok {
		return fmt.Errorf("no fused snapshot available yet")
	}

	// 2. Compute tool outputs -> build FusedContext.
	account := inot.AccountState{} // filled in by the caller's broker adapter in a real deployment
	risk := inot.RiskParameters{
		RiskPerTrade:  e.cfg.RiskPerTrade,
		MaxSpreadPips: 0,
		MaxOpenLots:   0,
	}
	fc, err := buildFusedContext(e.cfg.Symbol, snap.ReferenceTime, e.history, snap, e.tools, account, risk)
	if errors.Is(err, ErrInsufficientHistory) {
		log.Debug().Str("symbol", e.cfg.Symbol).Msg("skipping iteration: insufficient price history")
		return nil
	}
	if err != nil {
		return fmt.Errorf("build fused context: %w", err)
	}

	// 3. Load MemorySnapshot.
	memSnap, err := e.store.LoadSnapshot(ctx, e.cfg.SnapshotDays, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("load memory snapshot: %w", err)
	}

	// 4-5. Choose orchestrator vs rule-based fallback.
	budgetOK := true
	if e.budget != nil {
		budgetOK = !e.budget.Exhausted()
	}

	var decision inot.Decision
	if usesOrchestrator(snap, e.cfg.OrchestratorOn, budgetOK) {
		decision, err = e.orchestrator.Decide(ctx, fc, memSnap)
		if err != nil {
			log.Warn().Err(err).Str("symbol", e.cfg.Symbol).Msg("orchestrator failed, falling back to rule tree")
			decision = ruleDecision(fc)
			decision.Lots = 0 // rule-tree lots are a placeholder; submit sizes from risk
		}
	} else {
		decision = ruleDecision(fc)
		decision.Lots = 0 // rule-tree lots are a placeholder; submit sizes from risk
	}

	// 6. Persist the decision with full provenance.
	stored := decisionToStored(decision, fc)
	if err := e.store.SaveDecision(ctx, stored); err != nil {
		log.Error().Err(err).Str("decision_id", decision.DecisionID.String()).Msg("failed to persist decision")
	}

	if decision.Action == inot.ActionHold || decision.Vetoed {
		return nil
	}
	if decision.Confidence < e.cfg.MinConfidence {
		log.Debug().Float64("confidence", decision.Confidence).Msg("decision below minimum confidence, skipping submission")
		return nil
	}

	// 7. Size the order via the Symbol Normalizer and submit to the Bridge.
	return e.submit(ctx, decision, fc)
}

func (e *Engine) submit(ctx context.Context, decision inot.Decision, fc inot.FusedContext) error {
	lots := decision.Lots
	if lots <= 0 {
		riskPerLot, err := e.normalizer.RiskUnits(ctx, decision.Symbol, e.cfg.DefaultStopPips, symbol.UnitPips)
		if err != nil {
			return fmt.Errorf("risk units: %w", err)
		}
		if riskPerLot > 0 {
			lots = (fc.Account.Balance * e.cfg.RiskPerTrade) / riskPerLot
		}
	}
	rounded, err := e.normalizer.RoundLot(ctx, decision.Symbol, lots)
	if err != nil {
		return fmt.Errorf("round lot: %w", err)
	}

	dir := bridge.DirectionBuy
	if decision.Action == inot.ActionSell {
		dir = bridge.DirectionSell
	}

	sig := bridge.Signal{
		Symbol:     decision.Symbol,
		Direction:  dir,
		Size:       rounded,
		Confidence: decision.Confidence,
		StopLoss:   decision.StopLoss,
		TakeProfit: decision.TakeProfit,
	}

	result, err := e.executor.Submit(ctx, sig)
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	if !result.Success {
		log.Warn().Str("error_code", result.ErrorCode).Str("error_message", result.ErrorMessage).
			Msg("order rejected by execution bridge")
		return nil
	}

	e.mu.Lock()
	e.openTrades[result.OrderID] = openTrade{
		orderID:    result.OrderID,
		decisionID: decision.DecisionID.String(),
		symbol:     decision.Symbol,
		entryPrice: result.FillPrice,
		direction:  dir,
		openedAt:   time.Now().UTC(),
	}
	e.mu.Unlock()

	return nil
}

// decisionToStored maps an inot.Decision plus the FusedContext it was made
// from into the Memory Store's append-only record, per §3's StoredDecision.
func decisionToStored(d inot.Decision, fc inot.FusedContext) memory.StoredDecision {
	return memory.StoredDecision{
		ID:         d.DecisionID,
		Timestamp:  d.Timestamp,
		Symbol:     d.Symbol,
		Action:     memory.Action(d.Action),
		Confidence: d.Confidence,
		Lots:       d.Lots,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
		Context: memory.ContextSnapshot{
			Price:  fc.Price,
			RSI:    fc.RSI,
			MACD:   fc.MACD,
			BB:     fc.BBPosition,
			Regime: fc.Regime,
		},
		SignalOutput:  memory.MarshalAgentOutput(d.AgentOutputs.Signal),
		RiskOutput:    memory.MarshalAgentOutput(d.AgentOutputs.Risk),
		ContextOutput: memory.MarshalAgentOutput(d.AgentOutputs.Context),
		SynthOutput:   memory.MarshalAgentOutput(d.AgentOutputs.Synthesis),
		Vetoed:        d.Vetoed,
		VetoReason:    d.VetoReason,
	}
}

// Run drives RunOnce on the configured loop interval until ctx is cancelled,
// per spec.md §5's iteration cadence and §6's graceful-shutdown lifecycle.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.LoopInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.RunOnce(ctx); err != nil {
				log.Error().Err(err).Str("symbol", e.cfg.Symbol).Msg("decision iteration failed")
			}
		}
	}
}
