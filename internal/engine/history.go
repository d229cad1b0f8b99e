// Package engine implements the Decision Engine glue (spec.md §4.7): it
// pulls the latest FusedSnapshot, runs the Tool Stack to build a
// FusedContext, loads a MemorySnapshot, chooses between the INoT
// Orchestrator and a deterministic rule tree, persists the decision, sizes
// and submits any resulting order through the Execution Bridge, and tracks
// the outcome asynchronously until the position closes.
package engine

import "sync"

// PriceHistory is a fixed-capacity rolling window of closed candles, fed by
// the fusion engine's price stream, that the Tool Stack's indicator
// calculations read from on every iteration. Grounded on
// fusion.ring's fixed-capacity slice-with-head shape, specialized to float
// series instead of FusedSnapshots.
type PriceHistory struct {
	mu     sync.Mutex
	cap    int
	closes []float64
	highs  []float64
	lows   []float64
}

// NewPriceHistory builds a history window holding at most capacity candles.
func NewPriceHistory(capacity int) *PriceHistory {
	if capacity <= 0 {
		capacity = 500
	}
	return &PriceHistory{cap: capacity}
}

// Push appends one candle, dropping the oldest once at capacity.
func (h *PriceHistory) Push(high, low, close float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.highs = appendCapped(h.highs, high, h.cap)
	h.lows = appendCapped(h.lows, low, h.cap)
	h.closes = appendCapped(h.closes, close, h.cap)
}

func appendCapped(series []float64, v float64, cap int) []float64 {
	series = append(series, v)
	if len(series) > cap {
		series = series[len(series)-cap:]
	}
	return series
}

// Snapshot returns copies of the high/low/close series for a single,
// consistent read by the indicator calculations.
func (h *PriceHistory) Snapshot() (highs, lows, closes []float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	highs = append([]float64(nil), h.highs...)
	lows = append([]float64(nil), h.lows...)
	closes = append([]float64(nil), h.closes...)
	return highs, lows, closes
}

// Len reports how many candles are currently held.
func (h *PriceHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.closes)
}
