package inot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/inot-trading/core/internal/errs"
	"github.com/inot-trading/core/internal/memory"
)

// stricterPostscript is appended to the prompt on a retry after a
// ValidationError, per spec.md §4.5's "stricter prompt postscript".
const stricterPostscript = `Your previous response failed strict JSON validation. Return ONLY a JSON array of exactly four objects, with no prose, no markdown fences, and no trailing commas.`

// Config bundles the orchestrator's tunables, per spec.md §4.5 and §6.
type Config struct {
	Client      ClientConfig
	Budget      BudgetConfig
	MaxAttempts int // retries on ValidationError with a stricter prompt postscript
}

// Orchestrator produces one Decision per (FusedContext, MemorySnapshot) pair
// from exactly one LLM completion, per spec.md §4.5. It retries only on
// ValidationError; a transport failure falls straight through to the safe
// HOLD fallback, since a broken connection won't be fixed by rephrasing the
// prompt.
type Orchestrator struct {
	client      *LLMClient
	budget      *BudgetGuard
	calibrator  confidenceMapper
	maxAttempts int
}

// Budget exposes the orchestrator's own BudgetGuard so a caller (the
// Decision Engine) can peek at remaining quota via Exhausted before
// attempting Decide, without holding a second, independently-counting
// guard that would double-debit the daily quota.
func (o *Orchestrator) Budget() *BudgetGuard { return o.budget }

// NewOrchestrator builds an Orchestrator. calibrator may be nil, in which
// case confidence passes through unmapped (matches memory.Calibrator's
// pre-activation behavior).
func NewOrchestrator(cfg Config, calibrator confidenceMapper) *Orchestrator {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}

	return &Orchestrator{
		client:      NewLLMClient(cfg.Client),
		budget:      NewBudgetGuard(cfg.Budget),
		calibrator:  calibrator,
		maxAttempts: maxAttempts,
	}
}

// Decide runs the §4.5 pipeline: budget check, prompt assembly, completion,
// validation with auto-remediation, hard veto, and synthesis. On
// BudgetExceededError it returns the error unwrapped so the Decision Engine
// can fall back to rule-based logic; any other persistent failure after
// MaxAttempts yields a safe HOLD decision with vetoed=true and no error.
func (o *Orchestrator) Decide(ctx context.Context, fc FusedContext, snap memory.MemorySnapshot) (Decision, error) {
	if err := o.budget.Check(); err != nil {
		return Decision{}, err
	}

	decisionID := uuid.New()
	postscript := ""
	var lastErr error

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		prompt := buildPrompt(fc, snap, postscript)

		content, _, err := o.client.Complete(ctx, orchestratorPreamble, prompt)
		if err != nil {
			lastErr = err
			break
		}

		out, err := parseAgentOutputs(content)
		if err != nil {
			lastErr = err
			var verr *errs.ValidationError
			if errors.As(err, &verr) && attempt < o.maxAttempts {
				log.Warn().Err(err).Int("attempt", attempt).Str("symbol", fc.Symbol).
					Msg("orchestrator output failed validation, retrying with stricter prompt")
				postscript = stricterPostscript
				continue
			}
			break
		}

		d := synthesize(decisionID, fc.Symbol, out, o.calibrator)

		log.Info().
			Str("decision_id", decisionID.String()).
			Str("symbol", fc.Symbol).
			Str("action", string(d.Action)).
			Float64("confidence", d.Confidence).
			Bool("vetoed", d.Vetoed).
			Str("signal_reasoning", out.Signal.Reasoning).
			Str("synthesis_reasoning", out.Synthesis.FinalDecision.Reasoning).
			Msg("orchestrator decision")

		return d, nil
	}

	log.Error().Err(lastErr).Str("decision_id", decisionID.String()).Str("symbol", fc.Symbol).
		Msg("orchestrator exhausted attempts, returning safe HOLD")
	return safeHold(decisionID, fc.Symbol), nil
}

func safeHold(decisionID uuid.UUID, symbol string) Decision {
	return Decision{
		DecisionID: decisionID,
		Symbol:     symbol,
		Action:     ActionHold,
		Lots:       0,
		Vetoed:     true,
		VetoReason: "reasoning failure",
		Timestamp:  time.Now().UTC(),
	}
}
