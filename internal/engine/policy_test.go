package engine

import (
	"testing"

	"github.com/inot-trading/core/internal/fusion"
	"github.com/inot-trading/core/internal/inot"
)

func freshSnapshot() fusion.FusedSnapshot {
	return fusion.FusedSnapshot{SyncStatus: fusion.SyncSynced}
}

func TestUsesOrchestrator_FalseWhenDisabled(t *testing.T) {
	if usesOrchestrator(freshSnapshot(), false, true) {
		t.Fatalf("expected false when orchestrator disabled")
	}
}

func TestUsesOrchestrator_FalseWhenBudgetExhausted(t *testing.T) {
	if usesOrchestrator(freshSnapshot(), true, false) {
		t.Fatalf("expected false when budget check fails")
	}
}

func TestUsesOrchestrator_FalseWhenSnapshotDegraded(t *testing.T) {
	snap := fusion.FusedSnapshot{SyncStatus: fusion.SyncSynced, Missing: []string{"news"}}
	if usesOrchestrator(snap, true, true) {
		t.Fatalf("expected false when snapshot has missing streams")
	}
}

func TestUsesOrchestrator_TrueWhenAllConditionsMet(t *testing.T) {
	if !usesOrchestrator(freshSnapshot(), true, true) {
		t.Fatalf("expected true when enabled, budget OK, and snapshot fresh")
	}
}

func TestRuleDecision_BullishCompositeWithAgreementYieldsBuy(t *testing.T) {
	fc := inot.FusedContext{
		Symbol:          "EURUSD",
		CompositeSignal: 0.8,
		AgreementScore:  0.9,
	}
	d := ruleDecision(fc)
	if d.Action != inot.ActionBuy {
		t.Fatalf("Action = %v, want BUY", d.Action)
	}
	if d.Vetoed {
		t.Fatalf("rule decisions must never set Vetoed")
	}
	if d.Lots <= 0 {
		t.Fatalf("Lots = %v, want > 0 for a non-HOLD action", d.Lots)
	}
}

func TestRuleDecision_BearishCompositeWithAgreementYieldsSell(t *testing.T) {
	fc := inot.FusedContext{
		Symbol:          "EURUSD",
		CompositeSignal: -0.7,
		AgreementScore:  0.85,
	}
	d := ruleDecision(fc)
	if d.Action != inot.ActionSell {
		t.Fatalf("Action = %v, want SELL", d.Action)
	}
}

func TestRuleDecision_WeakAgreementYieldsHoldRegardlessOfSignal(t *testing.T) {
	fc := inot.FusedContext{
		Symbol:          "EURUSD",
		CompositeSignal: 0.9,
		AgreementScore:  0.5, // below ruleMinAgreement
	}
	d := ruleDecision(fc)
	if d.Action != inot.ActionHold {
		t.Fatalf("Action = %v, want HOLD on weak agreement", d.Action)
	}
	if d.Lots != 0 {
		t.Fatalf("Lots = %v, want 0 for HOLD", d.Lots)
	}
}

func TestRuleDecision_WeakSignalYieldsHold(t *testing.T) {
	fc := inot.FusedContext{
		Symbol:          "EURUSD",
		CompositeSignal: 0.1,
		AgreementScore:  1.0,
	}
	d := ruleDecision(fc)
	if d.Action != inot.ActionHold {
		t.Fatalf("Action = %v, want HOLD on weak signal", d.Action)
	}
}

func TestClip01(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0: 0, 0.5: 0.5, 1: 1, 2: 1}
	for in, want := range cases {
		if got := clip01(in); got != want {
			t.Fatalf("clip01(%v) = %v, want %v", in, got, want)
		}
	}
}
