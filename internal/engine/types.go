package engine

import (
	"sync"
	"time"

	"github.com/inot-trading/core/internal/bridge"
	"github.com/inot-trading/core/internal/fusion"
	"github.com/inot-trading/core/internal/indicators"
	"github.com/inot-trading/core/internal/inot"
	"github.com/inot-trading/core/internal/memory"
	"github.com/inot-trading/core/internal/symbol"
)

// Config bundles the §6 "trading.*"/"risk.*" configuration keys this
// package consumes.
type Config struct {
	Symbol          string
	LoopInterval    time.Duration
	MinConfidence   float64
	OrchestratorOn  bool
	RiskPerTrade    float64 // fraction of balance, e.g. 0.01
	DefaultStopPips float64
	HistoryCapacity int
	SnapshotDays    int // lookback window for LoadSnapshot
}

// HealthStatus is the engine's own probe, surfaced per §4.7 step 8 and
// polled by an external health endpoint (out of this package's scope).
type HealthStatus struct {
	LastIterationAt time.Time
	LastError       string
	OpenPositions   int
}

// openTrade is an order the bridge filled that hasn't closed yet, tracked
// only in memory: the Memory Store records decisions and outcomes, not
// open-position state, per §4.6.
type openTrade struct {
	orderID    string
	decisionID string
	symbol     string
	entryPrice float64
	direction  bridge.Direction
	openedAt   time.Time
}

// Engine is the Decision Engine glue of spec.md §4.7, composing every
// leaf component (Tool Stack, Symbol Normalizer, Memory Store, INoT
// Orchestrator, Execution Bridge) into one iteration loop plus an
// asynchronous outcome monitor.
type Engine struct {
	cfg Config

	fusion       *fusion.Engine
	tools        *indicators.Service
	history      *PriceHistory
	normalizer   *symbol.Normalizer
	store        *memory.Store
	calibrator   *memory.Calibrator
	orchestrator *inot.Orchestrator
	executor     *bridge.Bridge
	budget       budgetChecker

	mu         sync.Mutex
	health     HealthStatus
	openTrades map[string]openTrade
}

// budgetChecker is the local interface satisfied by inot.BudgetGuard's
// Exhausted, mirrored here the same way inot.confidenceMapper mirrors
// memory.Calibrator: the engine decides whether to attempt the orchestrator
// at all, so it needs a non-mutating pre-flight read without importing
// inot's internals or debiting the same guard Decide debits internally.
type budgetChecker interface {
	Exhausted() bool
}

// New wires every dependency the Decision Engine needs. Callers build each
// leaf component (fusion.Engine, indicators.Service, symbol.Normalizer,
// memory.Store, memory.Calibrator, inot.Orchestrator, bridge.Bridge)
// independently, per §5's dependency-ordered startup.
func New(
	cfg Config,
	fusionEngine *fusion.Engine,
	tools *indicators.Service,
	normalizer *symbol.Normalizer,
	store *memory.Store,
	calibrator *memory.Calibrator,
	orchestrator *inot.Orchestrator,
	executor *bridge.Bridge,
	budget budgetChecker,
) *Engine {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 500
	}
	if cfg.SnapshotDays <= 0 {
		cfg.SnapshotDays = 30
	}
	return &Engine{
		cfg:          cfg,
		fusion:       fusionEngine,
		tools:        tools,
		history:      NewPriceHistory(cfg.HistoryCapacity),
		normalizer:   normalizer,
		store:        store,
		calibrator:   calibrator,
		orchestrator: orchestrator,
		executor:     executor,
		budget:       budget,
		openTrades:   make(map[string]openTrade),
	}
}

// Health returns a snapshot of the engine's last-iteration probe.
func (e *Engine) Health() HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

func (e *Engine) setHealth(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health.LastIterationAt = time.Now().UTC()
	e.health.OpenPositions = len(e.openTrades)
	if err != nil {
		e.health.LastError = err.Error()
	} else {
		e.health.LastError = ""
	}
}
