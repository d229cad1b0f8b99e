package fusion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// EngineConfig configures the fusion and cleanup loop cadence and buffer
// sizing. Zero values fall back to §4.4's defaults.
type EngineConfig struct {
	SyncWindow      time.Duration // Temporal Aligner window, default 100ms
	BufferCap       int           // per-stream retained-event cap, default 1000
	ActiveCap       int           // active ring capacity, default 1000
	ArchivalCap     int           // archival ring capacity, default 100
	FusionInterval  time.Duration // fusion tick cadence, default SyncWindow/2
	CleanupInterval time.Duration // buffer-aging cadence, default 10x SyncWindow
}

// Engine drives N DataStreams, aligns their events every tick via a
// TemporalAligner, and publishes FusedSnapshots into a FusionBuffer
// (§4.4). Grounded on the teacher's SyncService cooperative-loop shape
// (ticker + context cancellation + explicit stop channel), generalized from
// one periodic task to two (fusion + cleanup) coordinated by an errgroup so
// a panic or early return in either loop is observable by stop().
type Engine struct {
	cfg     EngineConfig
	aligner *TemporalAligner
	buffer  *FusionBuffer

	mu      sync.Mutex
	streams map[string]DataStream
	order   []string // insertion order, for deterministic alignment

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewEngine constructs an Engine. Call AddStream for every producer before
// Start.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.SyncWindow <= 0 {
		cfg.SyncWindow = defaultSyncWindow
	}
	if cfg.FusionInterval <= 0 {
		cfg.FusionInterval = cfg.SyncWindow / 2
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cfg.SyncWindow * 10
	}

	return &Engine{
		cfg:     cfg,
		aligner: NewTemporalAligner(cfg.SyncWindow, cfg.BufferCap),
		buffer:  NewFusionBuffer(cfg.ActiveCap, cfg.ArchivalCap),
		streams: make(map[string]DataStream),
	}
}

// AddStream registers a stream with the engine. Must be called before Start.
func (e *Engine) AddStream(s DataStream) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.streams[s.ID()]; !exists {
		e.order = append(e.order, s.ID())
	}
	e.streams[s.ID()] = s
}

// Start connects and starts every registered stream, then launches the
// fusion and cleanup loops as a cooperative errgroup.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	streams := make([]DataStream, 0, len(e.streams))
	for _, id := range e.order {
		streams = append(streams, e.streams[id])
	}
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for _, s := range streams {
		if err := s.Connect(runCtx); err != nil {
			log.Error().Err(err).Str("stream", s.ID()).Msg("stream connect failed, continuing without it")
			e.aligner.SetActive(s.ID(), false)
			continue
		}
		if err := s.Start(runCtx); err != nil {
			log.Error().Err(err).Str("stream", s.ID()).Msg("stream start failed, continuing without it")
			e.aligner.SetActive(s.ID(), false)
			continue
		}
		e.aligner.SetActive(s.ID(), true)
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	e.group = group

	group.Go(func() error { return e.fusionLoop(groupCtx) })
	group.Go(func() error { return e.cleanupLoop(groupCtx) })

	log.Info().Int("streams", len(streams)).Msg("fusion engine started")
	return nil
}

// Stop signals the fusion and cleanup loops to exit and waits for them, then
// stops every registered stream. A stream failure never aborts Stop.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.group != nil {
		_ = e.group.Wait()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.order {
		e.streams[id].Stop()
	}
	log.Info().Msg("fusion engine stopped")
}

// LatestSnapshot reads the active ring head under the buffer's read lock;
// it is not a lock-free read.
func (e *Engine) LatestSnapshot() (FusedSnapshot, bool) {
	return e.buffer.LatestSnapshot()
}

// Buffer exposes the underlying FusionBuffer for latest(k)/range/by_index
// queries.
func (e *Engine) Buffer() *FusionBuffer { return e.buffer }

func (e *Engine) fusionLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.FusionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	referenceTime := time.Now().UTC()

	e.mu.Lock()
	ids := append([]string(nil), e.order...)
	streams := make([]DataStream, 0, len(ids))
	for _, id := range ids {
		streams = append(streams, e.streams[id])
	}
	e.mu.Unlock()

	for i, s := range streams {
		e.aligner.SetActive(ids[i], s.Status() == StatusActive)
		for {
			event, ok := s.GetEvent()
			if !ok {
				break
			}
			e.aligner.Ingest(ids[i], event, referenceTime)
		}
	}

	snapshot := e.aligner.Align(referenceTime, ids)
	e.buffer.Push(snapshot)

	if snapshot.SyncStatus != SyncSynced {
		log.Debug().Str("sync_status", string(snapshot.SyncStatus)).Strs("missing", snapshot.Missing).Msg("fusion tick degraded sync")
	}
}

func (e *Engine) cleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.aligner.Age(time.Now().UTC())
		}
	}
}
