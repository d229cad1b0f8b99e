package fusion

import (
	"sync"
	"time"
)

const (
	// defaultSyncWindow is the Temporal Aligner's default alignment tolerance.
	defaultSyncWindow = 100 * time.Millisecond
	// defaultBufferCap bounds each stream's retained-event buffer.
	defaultBufferCap = 1000
)

// TemporalAligner maintains a per-stream rolling buffer of recent events and
// aligns them to a reference time each fusion tick (§4.4).
type TemporalAligner struct {
	syncWindow time.Duration
	bufferCap  int

	mu      sync.Mutex
	buffers map[string][]Event // stream id -> events, oldest first
	active  map[string]bool    // stream id -> is ACTIVE right now
}

// NewTemporalAligner constructs an aligner; a zero syncWindow defaults to
// 100ms and a zero bufferCap defaults to 1000 events per stream.
func NewTemporalAligner(syncWindow time.Duration, bufferCap int) *TemporalAligner {
	if syncWindow <= 0 {
		syncWindow = defaultSyncWindow
	}
	if bufferCap <= 0 {
		bufferCap = defaultBufferCap
	}
	return &TemporalAligner{
		syncWindow: syncWindow,
		bufferCap:  bufferCap,
		buffers:    make(map[string][]Event),
		active:     make(map[string]bool),
	}
}

// Ingest appends an event to its stream's buffer and trims events older than
// referenceTime - syncWindow along with anything past bufferCap.
func (a *TemporalAligner) Ingest(streamID string, e Event, referenceTime time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := append(a.buffers[streamID], e)
	buf = trimExpired(buf, referenceTime, a.syncWindow)
	if len(buf) > a.bufferCap {
		buf = buf[len(buf)-a.bufferCap:]
	}
	a.buffers[streamID] = buf
}

func trimExpired(buf []Event, referenceTime time.Time, window time.Duration) []Event {
	cutoff := referenceTime.Add(-window)
	i := 0
	for i < len(buf) && buf[i].EventTime().Before(cutoff) {
		i++
	}
	return buf[i:]
}

// Age trims every stream's buffer of events older than
// referenceTime - syncWindow, independent of any Align call. The cleanup
// loop calls this on its own cadence so buffers don't grow unbounded
// between fusion ticks when a stream is producing faster than the fusion
// interval drains it.
func (a *TemporalAligner) Age(referenceTime time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, buf := range a.buffers {
		a.buffers[id] = trimExpired(buf, referenceTime, a.syncWindow)
	}
}

// SetActive records whether streamID is currently ACTIVE, consulted by
// Align to compute DISCONNECTED status.
func (a *TemporalAligner) SetActive(streamID string, active bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[streamID] = active
}

// Align picks, for each known stream, the buffered event closest to
// referenceTime within the sync window, and classifies overall sync_status
// from the maximum observed inter-stream lag and stream activity (§4.4).
func (a *TemporalAligner) Align(referenceTime time.Time, streamIDs []string) FusedSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	events := make(map[string]Event, len(streamIDs))
	var missing []string
	maxLag := time.Duration(0)
	anyInactive := false

	for _, id := range streamIDs {
		if !a.active[id] {
			anyInactive = true
		}

		best, lag, ok := closest(a.buffers[id], referenceTime, a.syncWindow)
		if !ok {
			missing = append(missing, id)
			continue
		}
		events[id] = best
		if lag > maxLag {
			maxLag = lag
		}
	}

	status := classifySyncStatus(maxLag, a.syncWindow, anyInactive, len(missing) > 0)

	return FusedSnapshot{
		ReferenceTime: referenceTime,
		Events:        events,
		Missing:       missing,
		SyncStatus:    status,
	}
}

func closest(buf []Event, referenceTime time.Time, window time.Duration) (Event, time.Duration, bool) {
	var best Event
	bestLag := time.Duration(-1)
	found := false

	for _, e := range buf {
		lag := referenceTime.Sub(e.EventTime())
		if lag < 0 {
			lag = -lag
		}
		if lag > window {
			continue
		}
		if !found || lag < bestLag {
			best = e
			bestLag = lag
			found = true
		}
	}
	return best, bestLag, found
}

func classifySyncStatus(maxLag, window time.Duration, anyInactive, anyMissing bool) SyncStatus {
	if anyInactive {
		return SyncDisconnected
	}
	switch {
	case anyMissing:
		return SyncStale
	case maxLag <= window:
		return SyncSynced
	case maxLag <= 5*window:
		return SyncDelayed
	default:
		return SyncStale
	}
}
