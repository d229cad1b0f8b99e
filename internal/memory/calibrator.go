package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	// calibratorActivateSamples is the minimum closed-trade sample size
	// before Map starts adjusting confidence, per spec.md §4.5.
	calibratorActivateSamples = 100
	// calibratorProductionSamples is the minimum sample size considered
	// production-grade; below it the calibrator is active but still
	// coarse.
	calibratorProductionSamples = 200
	// epsilon is the floor confidences are clipped to before any
	// geometric-mean or calibration math, avoiding zeroing.
	epsilon = 1e-6
)

// calibrationPoint is one (predicted_confidence, actual_win) observation
// drawn from a closed trade outcome.
type calibrationPoint struct {
	predicted float64
	win       float64 // 1.0 win, 0.0 not-win
}

// knot is a vertex of the fitted monotone piecewise-linear mapping.
type knot struct {
	x, y float64
}

// Calibrator fits a monotone isotonic mapping from predicted confidence to
// observed win rate, per spec.md §4.5: "Calibrator stores a monotone
// piecewise-linear isotonic mapping fitted on {predicted_confidence,
// actual_win} pairs from closed trades." Refit replaces the mapping
// atomically (copy-on-update) so Map never observes a partially-built
// model, grounded on the teacher's pattern of tracking WinRate/Sharpe
// incrementally in procedural.go but fitting the full curve in one pass
// here since isotonic regression is not incremental.
type Calibrator struct {
	mu      sync.RWMutex
	knots   []knot
	samples int
}

// NewCalibrator returns an inactive calibrator (Map is identity until Fit
// has seen enough samples).
func NewCalibrator() *Calibrator {
	return &Calibrator{}
}

// Active reports whether the calibrator has enough samples to adjust
// confidence at all (§4.5: "requires ≥ 100 samples to activate").
func (c *Calibrator) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samples >= calibratorActivateSamples
}

// ProductionReady reports whether the calibrator has the ≥200 samples the
// spec considers production-grade.
func (c *Calibrator) ProductionReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samples >= calibratorProductionSamples
}

// Fit rebuilds the mapping from scratch given every closed-trade
// observation, using pool-adjacent-violators (PAVA) to produce the monotone
// isotonic regression, then compresses the result into knots for
// piecewise-linear interpolation. The old mapping stays live for concurrent
// Map calls until Fit returns.
func (c *Calibrator) Fit(points []calibrationPoint) {
	if len(points) < calibratorActivateSamples {
		log.Debug().Int("samples", len(points)).Msg("calibrator: insufficient samples to fit")
		c.mu.Lock()
		c.samples = len(points)
		c.mu.Unlock()
		return
	}

	sorted := make([]calibrationPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].predicted < sorted[j].predicted })

	ys := pava(sorted)

	newKnots := make([]knot, len(sorted))
	for i, p := range sorted {
		newKnots[i] = knot{x: p.predicted, y: ys[i]}
	}
	newKnots = dedupeKnots(newKnots)

	c.mu.Lock()
	c.knots = newKnots
	c.samples = len(points)
	c.mu.Unlock()

	log.Info().Int("samples", len(points)).Int("knots", len(newKnots)).Msg("calibrator refit")
}

// Refit loads every closed-trade sample from store and rebuilds the mapping.
// Intended to run periodically from the Decision Engine's maintenance loop.
func (c *Calibrator) Refit(ctx context.Context, store *Store) error {
	samples, err := store.LoadCalibrationSamples(ctx)
	if err != nil {
		return err
	}
	c.Fit(samples)
	return nil
}

// Map applies the fitted isotonic mapping to a raw confidence score,
// per §4.5. The score is first clipped to [epsilon, 1-epsilon]; an inactive
// calibrator returns that clipped score, and scores outside the fitted range
// take the calibrated value of the nearest fitted endpoint.
func (c *Calibrator) Map(confidence float64) float64 {
	clipped := clip01(confidence, epsilon)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.samples < calibratorActivateSamples || len(c.knots) == 0 {
		return clipped
	}
	return interpolate(c.knots, clipped)
}

// clip01 clamps v to [eps, 1-eps] to avoid zeroing out a geometric mean.
func clip01(v, eps float64) float64 {
	if v < eps {
		return eps
	}
	if v > 1-eps {
		return 1 - eps
	}
	return v
}

// pava runs pool-adjacent-violators regression over points already sorted
// by predicted confidence, returning one fitted y per input point.
func pava(points []calibrationPoint) []float64 {
	n := len(points)
	y := make([]float64, n)
	w := make([]float64, n)
	for i, p := range points {
		y[i] = p.win
		w[i] = 1.0
	}

	// Merge adjacent blocks that violate monotonicity, averaging weighted by
	// block size, until the sequence is non-decreasing.
	for {
		violated := false
		i := 0
		for i < len(y)-1 {
			if y[i] > y[i+1] {
				merged := (y[i]*w[i] + y[i+1]*w[i+1]) / (w[i] + w[i+1])
				mergedW := w[i] + w[i+1]
				y = append(y[:i], append([]float64{merged}, y[i+2:]...)...)
				w = append(w[:i], append([]float64{mergedW}, w[i+2:]...)...)
				violated = true
				if i > 0 {
					i--
				}
				continue
			}
			i++
		}
		if !violated {
			break
		}
	}

	// Expand merged blocks back to one y value per original point.
	out := make([]float64, n)
	idx := 0
	for bi := range y {
		// Each collapsed block absorbed some run of original points; we
		// recover the run length from how many original weights summed
		// into w[bi]. Re-walk points consuming weight 1 each.
		count := int(math.Round(w[bi]))
		for k := 0; k < count && idx < n; k++ {
			out[idx] = y[bi]
			idx++
		}
	}
	for idx < n {
		out[idx] = y[len(y)-1]
		idx++
	}
	return out
}

// dedupeKnots collapses duplicate x values (keeping the last y, which after
// PAVA is the monotone-correct one) so interpolation never divides by zero.
func dedupeKnots(knots []knot) []knot {
	if len(knots) == 0 {
		return knots
	}
	out := make([]knot, 0, len(knots))
	for _, k := range knots {
		if len(out) > 0 && out[len(out)-1].x == k.x {
			out[len(out)-1] = k
			continue
		}
		out = append(out, k)
	}
	return out
}

// interpolate evaluates the piecewise-linear mapping at x, clamping to the
// fitted range's endpoints outside it.
func interpolate(knots []knot, x float64) float64 {
	if x <= knots[0].x {
		return knots[0].y
	}
	last := knots[len(knots)-1]
	if x >= last.x {
		return last.y
	}
	for i := 0; i < len(knots)-1; i++ {
		a, b := knots[i], knots[i+1]
		if x >= a.x && x <= b.x {
			if b.x == a.x {
				return a.y
			}
			t := (x - a.x) / (b.x - a.x)
			return a.y + t*(b.y-a.y)
		}
	}
	return last.y
}
