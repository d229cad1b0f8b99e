package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/inot-trading/core/internal/errs"
)

// State mirrors the three-state machine of §4.2: CLOSED (normal), OPEN
// (fail fast), HALF_OPEN (probing).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// BreakerConfig configures a single protected dependency.
type BreakerConfig struct {
	Name                 string
	FailureThreshold     uint32        // consecutive failures to trip
	RecoveryTimeout      time.Duration // OPEN -> HALF_OPEN window
	HalfOpenMaxSuccesses uint32        // consecutive probes required to re-close
}

// CircuitBreaker wraps gobreaker.CircuitBreaker to realize the spec's
// consecutive-failure trip rule (not gobreaker's default failure-ratio
// rule): ReadyToTrip fires once ConsecutiveFailures reaches the threshold,
// and gobreaker's native half-open probe counting realizes
// half_open_max_successes without extra bookkeeping.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
	cfg  BreakerConfig

	mu          sync.Mutex
	lastTrip    time.Time
	metrics     *breakerMetrics
}

// NewCircuitBreaker constructs a breaker for a single dependency, serialized
// per-breaker by gobreaker's internal mutex (§4.2 thread-safety).
func NewCircuitBreaker(cfg BreakerConfig, metrics *breakerMetrics) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout == 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxSuccesses == 0 {
		cfg.HalfOpenMaxSuccesses = 1
	}

	breaker := &CircuitBreaker{name: cfg.name(), cfg: cfg, metrics: metrics}

	breaker.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Interval:    0, // never reset counts while closed; only ConsecutiveFailures matters
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breaker.onStateChange(from, to)
		},
	})

	if metrics != nil {
		metrics.setState(breaker.name, StateClosed)
	}

	return breaker
}

func (c *BreakerConfig) name() string {
	if c.Name == "" {
		return "unnamed"
	}
	return c.Name
}

func (b *CircuitBreaker) onStateChange(from, to gobreaker.State) {
	b.mu.Lock()
	if to == gobreaker.StateOpen {
		b.lastTrip = time.Now()
	}
	b.mu.Unlock()

	log.Warn().
		Str("breaker", b.name).
		Str("from", gobreakerStateName(from)).
		Str("to", gobreakerStateName(to)).
		Msg("circuit breaker state transition")

	if b.metrics != nil {
		b.metrics.setState(b.name, mapState(to))
	}
}

func gobreakerStateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return string(StateClosed)
	case gobreaker.StateOpen:
		return string(StateOpen)
	case gobreaker.StateHalfOpen:
		return string(StateHalfOpen)
	default:
		return "unknown"
	}
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// State reports the breaker's current state.
func (b *CircuitBreaker) State() State {
	return mapState(b.cb.State())
}

// Execute invokes op under breaker protection. In CLOSED/HALF_OPEN it
// invokes op directly; in OPEN it fails fast with CircuitOpenError without
// calling op.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		if b.metrics != nil {
			b.metrics.recordRequest(b.name, false)
		}
		return &errs.CircuitOpenError{Breaker: b.name}
	}

	if b.metrics != nil {
		b.metrics.recordRequest(b.name, err == nil)
	}
	return err
}

// breakerMetrics holds the shared Prometheus instrumentation for all
// breakers in a registry, grounded on risk/circuit_breaker.go's
// CircuitBreakerMetrics (state gauge + request/failure counters).
type breakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func newBreakerMetrics(reg prometheus.Registerer) *breakerMetrics {
	factory := promauto.With(reg)
	return &breakerMetrics{
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inot_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		}, []string{"breaker"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inot_circuit_breaker_requests_total",
			Help: "Requests passed through a circuit breaker",
		}, []string{"breaker", "result"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inot_circuit_breaker_failures_total",
			Help: "Failures observed by a circuit breaker",
		}, []string{"breaker"}),
	}
}

func (m *breakerMetrics) setState(name string, s State) {
	var v float64
	switch s {
	case StateOpen:
		v = 1
	case StateHalfOpen:
		v = 2
	}
	m.state.WithLabelValues(name).Set(v)
}

func (m *breakerMetrics) recordRequest(name string, success bool) {
	if success {
		m.requests.WithLabelValues(name, "success").Inc()
		return
	}
	m.requests.WithLabelValues(name, "failure").Inc()
	m.failures.WithLabelValues(name).Inc()
}

// BreakerRegistry owns one CircuitBreaker per protected dependency,
// grounded on risk/circuit_breaker.go's CircuitBreakerManager (exchange,
// llm, database breakers with distinct thresholds per class).
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	metrics  *breakerMetrics
}

// NewBreakerRegistry creates an empty registry with its own Prometheus
// registerer. Pass prometheus.DefaultRegisterer in production, or a fresh
// prometheus.NewRegistry() in tests to avoid duplicate-registration panics.
func NewBreakerRegistry(reg prometheus.Registerer) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		metrics:  newBreakerMetrics(reg),
	}
}

// Register adds or replaces the breaker for a named dependency.
func (r *BreakerRegistry) Register(cfg BreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := NewCircuitBreaker(cfg, r.metrics)
	r.breakers[cfg.Name] = b
	return b
}

// Get returns the breaker registered for name, or nil.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}
