package engine

import "testing"

func TestPriceHistory_PushAccumulatesUntilCapacity(t *testing.T) {
	h := NewPriceHistory(3)
	h.Push(1, 0, 0.5)
	h.Push(2, 0, 1.5)

	if got := h.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	h.Push(3, 0, 2.5)
	h.Push(4, 0, 3.5) // over capacity, should drop the oldest

	if got := h.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	highs, _, closes := h.Snapshot()
	wantHighs := []float64{2, 3, 4}
	for i, v := range wantHighs {
		if highs[i] != v {
			t.Fatalf("highs[%d] = %v, want %v", i, highs[i], v)
		}
	}
	if closes[len(closes)-1] != 3.5 {
		t.Fatalf("last close = %v, want 3.5", closes[len(closes)-1])
	}
}

func TestPriceHistory_SnapshotReturnsDefensiveCopies(t *testing.T) {
	h := NewPriceHistory(5)
	h.Push(1, 1, 1)

	highs, _, _ := h.Snapshot()
	highs[0] = 999

	highs2, _, _ := h.Snapshot()
	if highs2[0] == 999 {
		t.Fatalf("Snapshot() leaked internal slice, mutation visible")
	}
}

func TestNewPriceHistory_DefaultsCapacityWhenNonPositive(t *testing.T) {
	h := NewPriceHistory(0)
	if h.cap != 500 {
		t.Fatalf("cap = %d, want default 500", h.cap)
	}
}
