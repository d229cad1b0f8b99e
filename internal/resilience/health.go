package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthStatus is the worst-of-aggregated status of a probe or the registry.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthCritical HealthStatus = "critical"
)

var statusRank = map[HealthStatus]int{
	HealthHealthy:   0,
	HealthDegraded:  1,
	HealthUnhealthy: 2,
	HealthCritical:  3,
}

// HealthResult is the outcome of a single probe invocation.
type HealthResult struct {
	Status    HealthStatus
	CheckedAt time.Time
	LatencyMs float64
	Metadata  map[string]string
}

// Probe is a named health check.
type Probe func(ctx context.Context) HealthResult

// HealthRegistry holds named probes and aggregates their results
// worst-of, per §4.2.
type HealthRegistry struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	gauge   *prometheus.GaugeVec
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry(reg prometheus.Registerer) *HealthRegistry {
	return &HealthRegistry{
		probes: make(map[string]Probe),
		gauge: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "inot_health_probe_status",
			Help: "Health probe status (0=healthy,1=degraded,2=unhealthy,3=critical)",
		}, []string{"probe"}),
	}
}

// Register adds or replaces a named probe.
func (h *HealthRegistry) Register(name string, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = p
}

// Snapshot is the result of EvaluateAll: per-probe results plus the
// worst-of aggregate.
type Snapshot struct {
	Overall HealthStatus
	Probes  map[string]HealthResult
}

// EvaluateAll runs every registered probe and aggregates worst-of.
func (h *HealthRegistry) EvaluateAll(ctx context.Context) Snapshot {
	h.mu.RLock()
	probes := make(map[string]Probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.RUnlock()

	results := make(map[string]HealthResult, len(probes))
	overall := HealthHealthy

	for name, probe := range probes {
		start := time.Now()
		result := probe(ctx)
		if result.CheckedAt.IsZero() {
			result.CheckedAt = start
		}
		if result.LatencyMs == 0 {
			result.LatencyMs = float64(time.Since(start).Milliseconds())
		}
		results[name] = result
		h.gauge.WithLabelValues(name).Set(float64(statusRank[result.Status]))

		if statusRank[result.Status] > statusRank[overall] {
			overall = result.Status
		}
	}

	return Snapshot{Overall: overall, Probes: results}
}
