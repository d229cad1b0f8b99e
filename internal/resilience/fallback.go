package resilience

import (
	"context"
	"sync"

	"github.com/inot-trading/core/internal/errs"
)

// FallbackHandler produces a degraded-but-safe result for a capability when
// its primary path is unavailable (e.g. CircuitOpenError from the LLM
// breaker routes the Decision Engine to a rule-based fallback handler).
type FallbackHandler func(ctx context.Context) (interface{}, error)

// FallbackRegistry holds named fallback handlers keyed by capability.
type FallbackRegistry struct {
	mu       sync.RWMutex
	handlers map[string]FallbackHandler
}

// NewFallbackRegistry creates an empty registry.
func NewFallbackRegistry() *FallbackRegistry {
	return &FallbackRegistry{handlers: make(map[string]FallbackHandler)}
}

// Register adds or replaces the fallback handler for a capability name.
func (r *FallbackRegistry) Register(capability string, h FallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[capability] = h
}

// Execute invokes the registered handler for capability, or fails with
// NoFallbackError if none is registered.
func (r *FallbackRegistry) Execute(ctx context.Context, capability string) (interface{}, error) {
	r.mu.RLock()
	h, ok := r.handlers[capability]
	r.mu.RUnlock()

	if !ok {
		return nil, &errs.NoFallbackError{Capability: capability}
	}
	return h(ctx)
}
