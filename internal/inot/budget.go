package inot

import (
	"sync"
	"time"

	"github.com/inot-trading/core/internal/errs"
)

// BudgetConfig bounds the orchestrator's per-day LLM usage, per spec.md
// §4.5. A zero threshold means unbounded for that dimension.
type BudgetConfig struct {
	MaxDecisionsPerDay int
	MaxCostPerDay      float64
	CostPerCompletion  float64
}

// BudgetGuard tracks per-day decision and cost counters, resetting at UTC
// midnight. Grounded on the teacher's FallbackClient circuit-breaker
// bookkeeping style (a mutex-guarded counter struct consulted before every
// call), generalized here to a simple daily quota rather than a sliding
// failure window.
type BudgetGuard struct {
	mu        sync.Mutex
	cfg       BudgetConfig
	day       string
	decisions int
	cost      float64
}

// NewBudgetGuard returns a guard starting fresh for the current UTC day.
func NewBudgetGuard(cfg BudgetConfig) *BudgetGuard {
	return &BudgetGuard{cfg: cfg, day: currentDay()}
}

func currentDay() string {
	return time.Now().UTC().Format("2006-01-02")
}

// Check records an intended completion and fails fast with
// *errs.BudgetExceededError if either per-day threshold would be crossed.
// The engine treats that error as a signal to fall back to rule-based logic.
func (b *BudgetGuard) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := currentDay()
	if today != b.day {
		b.day = today
		b.decisions = 0
		b.cost = 0
	}

	if b.cfg.MaxDecisionsPerDay > 0 && b.decisions >= b.cfg.MaxDecisionsPerDay {
		return &errs.BudgetExceededError{
			Quota: "decisions_per_day",
			Limit: float64(b.cfg.MaxDecisionsPerDay),
			Used:  float64(b.decisions),
		}
	}

	projectedCost := b.cost + b.cfg.CostPerCompletion
	if b.cfg.MaxCostPerDay > 0 && projectedCost > b.cfg.MaxCostPerDay {
		return &errs.BudgetExceededError{
			Quota: "cost_per_day",
			Limit: b.cfg.MaxCostPerDay,
			Used:  b.cost,
		}
	}

	b.decisions++
	b.cost = projectedCost
	return nil
}

// Exhausted reports whether either quota is already at its limit, without
// recording a completion. Used by callers that want to decide whether to
// attempt an orchestrator call at all before Decide's own Check debits the
// guard — a non-mutating peek, since Check itself has side effects.
func (b *BudgetGuard) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := currentDay()
	if today != b.day {
		return false
	}
	if b.cfg.MaxDecisionsPerDay > 0 && b.decisions >= b.cfg.MaxDecisionsPerDay {
		return true
	}
	if b.cfg.MaxCostPerDay > 0 && b.cost+b.cfg.CostPerCompletion > b.cfg.MaxCostPerDay {
		return true
	}
	return false
}
