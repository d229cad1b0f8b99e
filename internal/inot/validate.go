package inot

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/inot-trading/core/internal/errs"
)

// rawSection is the loosely-typed intermediate form each agent object parses
// into before field-level coercion, since auto-remediation must tolerate
// numeric values sent as strings, per spec.md §4.5.
type rawSection map[string]interface{}

var trailingCommaPattern = regexp.MustCompile(`,\s*([\]}])`)

// parseAgentOutputs runs the §4.5 validation pipeline: JSON parse -> schema
// validation -> auto-remediation -> revalidation. Any residual violation
// fails with an *errs.ValidationError.
func parseAgentOutputs(content string) (AgentOutputs, error) {
	sections, err := parseSections(content)
	if err != nil {
		remediated := remediate(content)
		sections, err = parseSections(remediated)
		if err != nil {
			return AgentOutputs{}, &errs.ValidationError{Stage: "parse", Message: err.Error()}
		}
	}

	if len(sections) != 4 {
		return AgentOutputs{}, &errs.ValidationError{
			Stage:   "schema",
			Message: fmt.Sprintf("expected 4 agent sections (signal, risk, context, synthesis), got %d", len(sections)),
		}
	}

	out, err := decodeSections(sections)
	if err != nil {
		return AgentOutputs{}, &errs.ValidationError{Stage: "schema", Message: err.Error()}
	}
	return out, nil
}

func parseSections(content string) ([]rawSection, error) {
	candidate := extractJSON(content)
	var sections []rawSection
	if err := json.Unmarshal([]byte(candidate), &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// remediate corrects the benign fault set §4.5 enumerates that a raw
// json.Unmarshal can't tolerate: trailing commas, plus stray prose or
// markdown fences around the array (handled by extractJSON). Missing-field
// defaults, numeric-string coercion, and confidence clipping happen
// per-field in decodeSections, since they require knowing each field's type.
func remediate(content string) string {
	candidate := extractJSON(content)
	return trailingCommaPattern.ReplaceAllString(candidate, "$1")
}

func decodeSections(sections []rawSection) (AgentOutputs, error) {
	signal, err := decodeSignal(sections[0])
	if err != nil {
		return AgentOutputs{}, fmt.Errorf("signal: %w", err)
	}
	risk, err := decodeRisk(sections[1])
	if err != nil {
		return AgentOutputs{}, fmt.Errorf("risk: %w", err)
	}
	ctxOut, err := decodeContext(sections[2])
	if err != nil {
		return AgentOutputs{}, fmt.Errorf("context: %w", err)
	}
	synth, err := decodeSynthesis(sections[3])
	if err != nil {
		return AgentOutputs{}, fmt.Errorf("synthesis: %w", err)
	}
	return AgentOutputs{Signal: signal, Risk: risk, Context: ctxOut, Synthesis: synth}, nil
}

func decodeSignal(s rawSection) (SignalOutput, error) {
	action, err := asAction(s["action"])
	if err != nil {
		return SignalOutput{}, err
	}
	return SignalOutput{
		Action:     action,
		Confidence: clip01(asFloatDefault(s["confidence"], 0)),
		Reasoning:  asStringDefault(s["reasoning"], ""),
	}, nil
}

func decodeRisk(s rawSection) (RiskOutput, error) {
	return RiskOutput{
		Approved:               asBoolDefault(s["approved"], false),
		Confidence:             clip01(asFloatDefault(s["confidence"], 0)),
		PositionSizeAdjustment: asFloatDefault(s["position_size_adjustment"], 1.0),
		StopLossRequired:       asBoolDefault(s["stop_loss_required"], false),
		VetoReason:             asStringDefault(s["veto_reason"], ""),
	}, nil
}

func decodeContext(s rawSection) (ContextOutput, error) {
	return ContextOutput{
		Regime:           asStringDefault(s["regime"], "UNKNOWN"),
		RegimeConfidence: clip01(asFloatDefault(s["regime_confidence"], 0)),
		SignalRegimeFit:  clip01(asFloatDefault(s["signal_regime_fit"], 0)),
	}, nil
}

func decodeSynthesis(s rawSection) (SynthesisOutput, error) {
	fdRaw, ok := s["final_decision"].(map[string]interface{})
	if !ok {
		return SynthesisOutput{}, fmt.Errorf("missing final_decision object")
	}

	action, err := asAction(fdRaw["action"])
	if err != nil {
		return SynthesisOutput{}, err
	}

	fd := FinalDecision{
		Action:     action,
		Lots:       asFloatDefault(fdRaw["lots"], 0),
		Confidence: clip01(asFloatDefault(fdRaw["confidence"], 0)),
		Reasoning:  asStringDefault(fdRaw["reasoning"], ""),
	}
	if sl, ok := asFloatPointer(fdRaw["stop_loss"]); ok {
		fd.StopLoss = sl
	}
	if tp, ok := asFloatPointer(fdRaw["take_profit"]); ok {
		fd.TakeProfit = tp
	}
	return SynthesisOutput{FinalDecision: fd}, nil
}

func asFloatDefault(v interface{}, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

func asFloatPointer(v interface{}) (*float64, bool) {
	if v == nil {
		return nil, false
	}
	f := asFloatDefault(v, math.NaN())
	if math.IsNaN(f) {
		return nil, false
	}
	return &f, true
}

func asStringDefault(v interface{}, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func asBoolDefault(v interface{}, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

func asAction(v interface{}) (Action, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("missing or non-string action")
	}
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	case ActionHold:
		return ActionHold, nil
	default:
		return "", fmt.Errorf("invalid action %q", s)
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
