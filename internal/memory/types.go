// Package memory implements the Memory Store (spec.md §4.3) and Confidence
// Calibrator (§4.5's calibration step), grounded on the teacher's
// pgx/v5-backed semantic.go/procedural.go stores: upsert-by-id writes,
// JSONB-encoded agent payloads, and pool.Query row scanning.
package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/inot-trading/core/internal/errs"
)

func invariantErr(msg string) error {
	return &errs.ValidationError{Stage: "outcome", Message: msg}
}

// Action mirrors the orchestrator's decision action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// OutcomeResult is the closed-trade result recorded against a decision.
type OutcomeResult string

const (
	ResultWin       OutcomeResult = "WIN"
	ResultLoss      OutcomeResult = "LOSS"
	ResultBreakeven OutcomeResult = "BREAKEVEN"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "SL"
	ExitTakeProfit ExitReason = "TP"
	ExitManual     ExitReason = "MANUAL"
	ExitTimeout    ExitReason = "TIMEOUT"
)

// ContextSnapshot is the condensed market context a StoredDecision was made
// under, per spec.md §3.
type ContextSnapshot struct {
	Price  float64 `json:"price"`
	RSI    float64 `json:"rsi"`
	MACD   float64 `json:"macd"`
	BB     float64 `json:"bb_position"`
	Regime string  `json:"regime"`
}

// StoredDecision is the append-mostly record of a single orchestrator
// decision, per spec.md §3.
type StoredDecision struct {
	ID            uuid.UUID
	Timestamp     time.Time
	Symbol        string
	Action        Action
	Confidence    float64
	Lots          float64
	StopLoss      *float64
	TakeProfit    *float64
	Context       ContextSnapshot
	SignalOutput  []byte // opaque JSON agent output
	RiskOutput    []byte
	ContextOutput []byte
	SynthOutput   []byte
	Vetoed        bool
	VetoReason    string
}

// TradeOutcome closes a StoredDecision, per spec.md §3. At most one per
// decision.
type TradeOutcome struct {
	DecisionID      uuid.UUID
	ClosedAt        time.Time
	Result          OutcomeResult
	Pips            float64
	DurationMinutes int
	ExitReason      ExitReason
	FillPrice       *float64
	ExitPrice       *float64
}

// Validate enforces the §4.3 invariant that result and pips sign agree.
func (o TradeOutcome) Validate() error {
	switch o.Result {
	case ResultWin:
		if o.Pips <= 0 {
			return invariantErr("WIN outcome must have pips > 0")
		}
	case ResultLoss:
		if o.Pips >= 0 {
			return invariantErr("LOSS outcome must have pips < 0")
		}
	case ResultBreakeven:
		if o.Pips != 0 {
			return invariantErr("BREAKEVEN outcome must have pips == 0")
		}
	default:
		return invariantErr("unknown outcome result: " + string(o.Result))
	}
	return nil
}

// Pattern is a rebuilt aggregate keyed by an indicator regime bucket, per
// spec.md §3.
type Pattern struct {
	PatternID   string
	RSIMin      float64
	RSIMax      float64
	MACDSignal  int // -1, 0, +1
	BBPosition  string
	Regime      string
	WinRate     float64
	AvgPips     float64
	SampleSize  int
	LastUpdated time.Time
}

// MemorySnapshot is the read-only aggregate handed to the orchestrator, per
// spec.md §3.
type MemorySnapshot struct {
	RecentDecisions []StoredDecision
	CurrentRegime   string
	WinRate30d      float64
	AvgWinPips      float64
	AvgLossPips     float64
	TotalTrades30d  int
	SimilarPatterns []Pattern
}
