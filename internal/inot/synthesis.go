package inot

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Fixed non-negative weights summing to 1, per spec.md §4.5.
const (
	weightSignal    = 0.45
	weightRisk      = 0.25
	weightContext   = 0.15
	weightSynthesis = 0.15
	synthEpsilon    = 1e-6
)

// confidenceMapper matches memory.Calibrator's Map method. Kept as a small
// interface rather than importing memory's concrete type so this package's
// constructor doesn't force a Memory Store dependency on callers that don't
// have a calibrator yet.
type confidenceMapper interface {
	Map(float64) float64
}

// synthesize applies the §4.5 hard veto and, for non-vetoed decisions,
// derives action/lots/confidence from the four parsed agent outputs. The
// veto is system-enforced here, not left to the prompt.
func synthesize(decisionID uuid.UUID, symbol string, out AgentOutputs, calibrator confidenceMapper) Decision {
	d := Decision{
		DecisionID:   decisionID,
		Symbol:       symbol,
		AgentOutputs: out,
		Timestamp:    time.Now().UTC(),
	}

	missingStop := out.Risk.StopLossRequired && out.Synthesis.FinalDecision.StopLoss == nil
	if !out.Risk.Approved || missingStop || out.Risk.PositionSizeAdjustment <= 0 {
		d.Action = ActionHold
		d.Lots = 0
		d.Vetoed = true
		d.VetoReason = vetoReason(out, missingStop)
		d.Reasoning = out.Synthesis.FinalDecision.Reasoning
		return d
	}

	fd := out.Synthesis.FinalDecision
	d.Action = fd.Action
	d.Lots = fd.Lots * out.Risk.PositionSizeAdjustment
	d.StopLoss = fd.StopLoss
	d.TakeProfit = fd.TakeProfit
	d.Reasoning = fd.Reasoning

	confidence := weightedGeometricMean(
		out.Signal.Confidence, weightSignal,
		out.Risk.Confidence, weightRisk,
		out.Context.RegimeConfidence, weightContext,
		fd.Confidence, weightSynthesis,
	)
	if calibrator != nil {
		confidence = calibrator.Map(confidence)
	}
	d.Confidence = confidence

	return d
}

func vetoReason(out AgentOutputs, missingStop bool) string {
	switch {
	case !out.Risk.Approved && out.Risk.VetoReason != "":
		return out.Risk.VetoReason
	case !out.Risk.Approved:
		return "risk agent did not approve"
	case missingStop:
		return "stop_loss_required but missing from decision"
	case out.Risk.PositionSizeAdjustment <= 0:
		return "position size adjustment non-positive"
	default:
		return "vetoed"
	}
}

// weightedGeometricMean computes exp(sum(w_i * ln(clip(v_i)))), clipping
// each component confidence to [epsilon, 1] first so a single zero
// confidence can't zero out the whole product, per spec.md §4.5.
func weightedGeometricMean(v1, w1, v2, w2, v3, w3, v4, w4 float64) float64 {
	logSum := w1*math.Log(clipEps(v1)) +
		w2*math.Log(clipEps(v2)) +
		w3*math.Log(clipEps(v3)) +
		w4*math.Log(clipEps(v4))
	return math.Exp(logSum)
}

func clipEps(v float64) float64 {
	if v < synthEpsilon {
		return synthEpsilon
	}
	if v > 1 {
		return 1
	}
	return v
}
