// Package inot implements the INoT Orchestrator (spec.md §4.5): given a
// FusedContext and a memory.MemorySnapshot, it produces exactly one Decision
// from a single language-model completion carrying four agent sections
// (Signal, Risk, Context, Synthesis), validated, hard-veto-checked, and
// synthesized into a final action/size/confidence.
package inot

import (
	"time"

	"github.com/google/uuid"
)

// Action mirrors memory.Action; kept distinct so this package's JSON schema
// doesn't leak memory's persistence concerns into the orchestrator's wire
// contract.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// NewsHeadline is the condensed form of a fusion.NewsEvent embedded in a
// FusedContext's prompt, per spec.md §4.5's context block.
type NewsHeadline struct {
	Title          string
	SentimentScore float64
	IsMajorEvent   bool
}

// UpcomingEvent is the condensed form of a fusion.EconomicEvent embedded in
// a FusedContext's prompt.
type UpcomingEvent struct {
	Category    string
	Impact      string
	ScheduledIn time.Duration
}

// AccountState is the account-side numeric context the orchestrator reasons
// over, per spec.md §3's FusedContext definition.
type AccountState struct {
	Balance       float64
	Equity        float64
	OpenPositions int
}

// RiskParameters are the operator-configured limits the orchestrator must
// respect, embedded in the prompt so the Risk agent can reason against them.
type RiskParameters struct {
	RiskPerTrade  float64
	MaxSpreadPips float64
	MaxOpenLots   float64
}

// FusedContext is the decision-time view the orchestrator reasons over,
// composed from a fusion.FusedSnapshot plus the tool stack's derived
// analytics, per spec.md §3.
type FusedContext struct {
	Symbol         string
	ReferenceTime  time.Time
	Price          float64
	RSI            float64
	MACD           float64
	MACDSignalLine float64
	MACDHistogram  float64
	BBUpper        float64
	BBMiddle       float64
	BBLower        float64
	BBPosition     float64
	Regime         string
	Volatility     float64

	CompositeSignal float64
	AgreementScore  float64

	LatestNews     []NewsHeadline
	UpcomingEvents []UpcomingEvent

	Account AccountState
	Risk    RiskParameters
}

// SignalOutput is the Signal agent's structured output, per spec.md §4.5.
type SignalOutput struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// RiskOutput is the Risk agent's structured output.
type RiskOutput struct {
	Approved               bool    `json:"approved"`
	Confidence             float64 `json:"confidence"`
	PositionSizeAdjustment float64 `json:"position_size_adjustment"`
	StopLossRequired       bool    `json:"stop_loss_required"`
	VetoReason             string  `json:"veto_reason,omitempty"`
}

// ContextOutput is the Context agent's structured output.
type ContextOutput struct {
	Regime           string  `json:"regime"`
	RegimeConfidence float64 `json:"regime_confidence"`
	SignalRegimeFit  float64 `json:"signal_regime_fit"`
}

// FinalDecision is the Synthesis agent's nested decision object.
type FinalDecision struct {
	Action     Action   `json:"action"`
	Lots       float64  `json:"lots"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// SynthesisOutput is the Synthesis agent's structured output.
type SynthesisOutput struct {
	FinalDecision FinalDecision `json:"final_decision"`
}

// AgentOutputs bundles the four parsed agent sections, in the order the
// schema fixes them: Signal, Risk, Context, Synthesis.
type AgentOutputs struct {
	Signal    SignalOutput
	Risk      RiskOutput
	Context   ContextOutput
	Synthesis SynthesisOutput
}

// Decision is the orchestrator's final output for one iteration, per
// spec.md §4.5.
type Decision struct {
	DecisionID   uuid.UUID
	Symbol       string
	Action       Action
	Lots         float64
	StopLoss     *float64
	TakeProfit   *float64
	Confidence   float64
	Vetoed       bool
	VetoReason   string
	AgentOutputs AgentOutputs
	Reasoning    string
	Timestamp    time.Time
}
