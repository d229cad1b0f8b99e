// Package fusion implements the Input Fusion Engine (spec.md §2 component
// D / §4.4): N independent async stream producers, a temporal aligner that
// reconciles their most recent events within a bounded window, and a dual
// ring-buffer that publishes FusedSnapshots for the Decision Engine to read.
package fusion

import "time"

// StreamStatus is a DataStream's lifecycle state (§4.4).
type StreamStatus string

const (
	StatusIdle       StreamStatus = "IDLE"
	StatusConnecting StreamStatus = "CONNECTING"
	StatusActive     StreamStatus = "ACTIVE"
	StatusPaused     StreamStatus = "PAUSED"
	StatusError      StreamStatus = "ERROR"
	StatusClosed     StreamStatus = "CLOSED"
)

// SyncStatus classifies how well-aligned a FusedSnapshot's constituent
// events are, derived from the Temporal Aligner's observed inter-stream lag.
type SyncStatus string

const (
	SyncSynced       SyncStatus = "SYNCED"
	SyncDelayed      SyncStatus = "DELAYED"
	SyncStale        SyncStatus = "STALE"
	SyncDisconnected SyncStatus = "DISCONNECTED"
)

// Event is anything a DataStream can produce: a PriceTick, NewsEvent, or
// EconomicEvent, aligned by its own timestamp.
type Event interface {
	EventTime() time.Time
}

// PriceTick is one OHLCV(+bid/ask) observation from a PriceStream.
// Immutable once constructed.
type PriceTick struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Bid       *float64
	Ask       *float64
}

func (t PriceTick) EventTime() time.Time { return t.Timestamp }

// NewsEvent is one sentiment-scored headline from a NewsStream. Immutable.
type NewsEvent struct {
	ID                  string
	Timestamp           time.Time
	Title               string
	Source              string
	SentimentScore      float64 // [-1, +1]
	SentimentConfidence float64 // [0, 1]
	RelevancePerSymbol  map[string]float64
	IsMajorEvent        bool
}

func (n NewsEvent) EventTime() time.Time { return n.Timestamp }

// EconomicImpact is the severity rating of a scheduled macro release.
type EconomicImpact string

const (
	ImpactLow    EconomicImpact = "LOW"
	ImpactMedium EconomicImpact = "MEDIUM"
	ImpactHigh   EconomicImpact = "HIGH"
)

// EconomicEvent is one scheduled macro release from an EconomicCalendarStream.
// Immutable at ingestion; a post-event revision with Actual filled in is
// treated as a new event keyed by the same ID.
type EconomicEvent struct {
	ID              string
	ScheduledUTC    time.Time
	Currency        string
	Impact          EconomicImpact
	ImpactScore     float64 // [0, 1]
	Category        string
	Forecast        *float64
	Previous        *float64
	Actual          *float64
	AffectedSymbols []string
}

func (e EconomicEvent) EventTime() time.Time { return e.ScheduledUTC }

// FusedSnapshot is one aligned cross-stream observation produced by the
// fusion loop at a steady cadence (§4.4). Every included event satisfies
// |event.EventTime() - ReferenceTime| <= sync window.
type FusedSnapshot struct {
	ReferenceTime time.Time
	Events        map[string]Event // stream id -> closest aligned event
	Missing       []string         // stream ids with no event inside the window
	SyncStatus    SyncStatus
}

// StreamStats reports a stream's lifetime counters, surfaced by get_stats.
type StreamStats struct {
	Status       StreamStatus
	EventsQueued int
	Dropped      int64
	LastEventAt  time.Time
}
