package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/inot-trading/core/internal/fusion"
	"github.com/inot-trading/core/internal/inot"
)

// ruleConfidenceThreshold is the minimum |composite_signal| the rule tree
// requires before it will issue a BUY/SELL instead of HOLD — conservative
// relative to the orchestrator, since the rule tree has no news/regime
// reasoning beyond what the Tool Stack already folded into the composite.
const ruleConfidenceThreshold = 0.5

// ruleMinAgreement is the minimum fraction of the four Tool Stack
// indicators that must agree with the composite's direction.
const ruleMinAgreement = 0.75

// usesOrchestrator decides between the INoT Orchestrator and the rule-based
// fallback, per spec.md §4.7 step 4: the orchestrator runs only when the
// fused snapshot is fully synced, the orchestrator is enabled, and the
// caller's budget check allows it.
func usesOrchestrator(snap fusion.FusedSnapshot, orchestratorEnabled, budgetOK bool) bool {
	return orchestratorEnabled && budgetOK && isFresh(snap)
}

// ruleDecision evaluates a deterministic tree over the FusedContext,
// producing the same Decision shape the orchestrator would, per §4.7 step
// 5. It never calls an LLM and never vetoes on stop-loss grounds — risk
// sizing and stop placement are left to the caller, which applies the same
// Symbol Normalizer sizing path regardless of which policy produced the
// decision.
func ruleDecision(fc inot.FusedContext) inot.Decision {
	action := inot.ActionHold
	reasoning := "rule fallback: composite signal below confidence threshold or indicators disagree"

	strongSignal := fc.AgreementScore >= ruleMinAgreement
	switch {
	case strongSignal && fc.CompositeSignal >= ruleConfidenceThreshold:
		action = inot.ActionBuy
		reasoning = "rule fallback: composite signal bullish with indicator agreement"
	case strongSignal && fc.CompositeSignal <= -ruleConfidenceThreshold:
		action = inot.ActionSell
		reasoning = "rule fallback: composite signal bearish with indicator agreement"
	}

	confidence := clip01(fc.AgreementScore * abs(fc.CompositeSignal))

	lots := 0.0
	if action != inot.ActionHold {
		lots = 1.0 // placeholder unit lot; sized for real by the Symbol Normalizer before submission
	}

	return inot.Decision{
		DecisionID: uuid.New(),
		Symbol:     fc.Symbol,
		Action:     action,
		Lots:       lots,
		Confidence: confidence,
		Reasoning:  reasoning,
		Timestamp:  time.Now().UTC(),
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
