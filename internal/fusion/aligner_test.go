package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTemporalAligner_AlignSynced(t *testing.T) {
	a := NewTemporalAligner(100*time.Millisecond, 10)
	ref := time.Now().UTC()

	a.Ingest("price", PriceTick{Timestamp: ref.Add(-10 * time.Millisecond)}, ref)
	a.Ingest("news", NewsEvent{Timestamp: ref.Add(-20 * time.Millisecond)}, ref)
	a.SetActive("price", true)
	a.SetActive("news", true)

	snap := a.Align(ref, []string{"price", "news"})
	assert.Equal(t, SyncSynced, snap.SyncStatus)
	assert.Len(t, snap.Events, 2)
	assert.Empty(t, snap.Missing)
}

func TestTemporalAligner_MissingStreamIsStale(t *testing.T) {
	a := NewTemporalAligner(100*time.Millisecond, 10)
	ref := time.Now().UTC()

	a.Ingest("price", PriceTick{Timestamp: ref}, ref)
	a.SetActive("price", true)
	a.SetActive("news", true)

	snap := a.Align(ref, []string{"price", "news"})
	assert.Equal(t, SyncStale, snap.SyncStatus)
	assert.Contains(t, snap.Missing, "news")
}

func TestTemporalAligner_InactiveStreamIsDisconnected(t *testing.T) {
	a := NewTemporalAligner(100*time.Millisecond, 10)
	ref := time.Now().UTC()

	a.Ingest("price", PriceTick{Timestamp: ref}, ref)
	a.SetActive("price", false)

	snap := a.Align(ref, []string{"price"})
	assert.Equal(t, SyncDisconnected, snap.SyncStatus)
}

func TestTemporalAligner_DelayedWithinFiveXWindow(t *testing.T) {
	a := NewTemporalAligner(100*time.Millisecond, 10)
	ref := time.Now().UTC()

	a.Ingest("price", PriceTick{Timestamp: ref.Add(-300 * time.Millisecond)}, ref.Add(500*time.Millisecond))
	a.SetActive("price", true)

	snap := a.Align(ref.Add(500*time.Millisecond), []string{"price"})
	assert.Equal(t, SyncDelayed, snap.SyncStatus)
}

func TestTemporalAligner_ExpiryTrimsOldEvents(t *testing.T) {
	a := NewTemporalAligner(100*time.Millisecond, 10)
	ref := time.Now().UTC()

	a.Ingest("price", PriceTick{Timestamp: ref.Add(-1 * time.Second)}, ref)
	a.SetActive("price", true)

	snap := a.Align(ref, []string{"price"})
	assert.Contains(t, snap.Missing, "price")
}

func TestTemporalAligner_Age(t *testing.T) {
	a := NewTemporalAligner(100*time.Millisecond, 10)
	ref := time.Now().UTC()

	a.Ingest("price", PriceTick{Timestamp: ref}, ref)
	a.Age(ref.Add(10 * time.Second))

	assert.Empty(t, a.buffers["price"])
}
