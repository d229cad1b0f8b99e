package inot

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeMapper struct{ shift float64 }

func (f fakeMapper) Map(c float64) float64 { return c + f.shift }

func TestSynthesize_ApprovedComputesWeightedConfidence(t *testing.T) {
	out := AgentOutputs{
		Signal:    SignalOutput{Action: ActionBuy, Confidence: 0.8},
		Risk:      RiskOutput{Approved: true, Confidence: 0.7, PositionSizeAdjustment: 1.2},
		Context:   ContextOutput{RegimeConfidence: 0.9},
		Synthesis: SynthesisOutput{FinalDecision: FinalDecision{Action: ActionBuy, Lots: 0.5, Confidence: 0.6}},
	}

	d := synthesize(uuid.New(), "EURUSD", out, nil)
	assert.False(t, d.Vetoed)
	assert.Equal(t, ActionBuy, d.Action)
	assert.InDelta(t, 0.6, d.Lots, 1e-9) // 0.5 * 1.2
	assert.Greater(t, d.Confidence, 0.0)
	assert.Less(t, d.Confidence, 1.0)
}

func TestSynthesize_VetoOnRiskRejection(t *testing.T) {
	out := AgentOutputs{
		Risk: RiskOutput{Approved: false, VetoReason: "too risky", PositionSizeAdjustment: 1.0},
	}
	d := synthesize(uuid.New(), "EURUSD", out, nil)
	assert.True(t, d.Vetoed)
	assert.Equal(t, ActionHold, d.Action)
	assert.Equal(t, 0.0, d.Lots)
	assert.Equal(t, "too risky", d.VetoReason)
}

func TestSynthesize_VetoOnMissingRequiredStopLoss(t *testing.T) {
	out := AgentOutputs{
		Risk:      RiskOutput{Approved: true, StopLossRequired: true, PositionSizeAdjustment: 1.0},
		Synthesis: SynthesisOutput{FinalDecision: FinalDecision{Action: ActionBuy, Lots: 0.2}},
	}
	d := synthesize(uuid.New(), "EURUSD", out, nil)
	assert.True(t, d.Vetoed)
	assert.Contains(t, d.VetoReason, "stop_loss_required")
}

func TestSynthesize_VetoOnNonPositiveSizeAdjustment(t *testing.T) {
	out := AgentOutputs{
		Risk: RiskOutput{Approved: true, PositionSizeAdjustment: 0},
	}
	d := synthesize(uuid.New(), "EURUSD", out, nil)
	assert.True(t, d.Vetoed)
}

func TestSynthesize_CalibrationHookAppliesMapping(t *testing.T) {
	out := AgentOutputs{
		Signal:    SignalOutput{Action: ActionBuy, Confidence: 0.8},
		Risk:      RiskOutput{Approved: true, Confidence: 0.8, PositionSizeAdjustment: 1.0},
		Context:   ContextOutput{RegimeConfidence: 0.8},
		Synthesis: SynthesisOutput{FinalDecision: FinalDecision{Action: ActionBuy, Lots: 1.0, Confidence: 0.8}},
	}
	base := synthesize(uuid.New(), "EURUSD", out, nil)
	mapped := synthesize(uuid.New(), "EURUSD", out, fakeMapper{shift: 0.05})
	assert.InDelta(t, base.Confidence+0.05, mapped.Confidence, 1e-9)
}

func TestWeightedGeometricMean_AllOnesIsOne(t *testing.T) {
	v := weightedGeometricMean(1, weightSignal, 1, weightRisk, 1, weightContext, 1, weightSynthesis)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestWeightedGeometricMean_ZeroComponentDoesNotZeroResult(t *testing.T) {
	v := weightedGeometricMean(0, weightSignal, 1, weightRisk, 1, weightContext, 1, weightSynthesis)
	assert.Greater(t, v, 0.0)
}
