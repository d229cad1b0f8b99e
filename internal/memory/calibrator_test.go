package memory

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalibrator_InactiveBelowThreshold(t *testing.T) {
	c := NewCalibrator()
	points := make([]calibrationPoint, 50)
	for i := range points {
		points[i] = calibrationPoint{predicted: float64(i) / 50.0, win: 1.0}
	}
	c.Fit(points)

	assert.False(t, c.Active())
	// Unmapped: passthrough modulo epsilon clipping.
	assert.InDelta(t, 0.73, c.Map(0.73), 1e-9)
}

func TestCalibrator_ActivatesAndMonotone(t *testing.T) {
	c := NewCalibrator()

	points := make([]calibrationPoint, 200)
	for i := range points {
		predicted := float64(i) / 200.0
		win := 0.0
		// Higher predicted confidence -> higher win probability, deterministic
		// threshold so Fit sees a clean monotone signal.
		if predicted > 0.5 {
			win = 1.0
		}
		points[i] = calibrationPoint{predicted: predicted, win: win}
	}
	c.Fit(points)

	assert.True(t, c.Active())
	assert.True(t, c.ProductionReady())

	low := c.Map(0.1)
	mid := c.Map(0.5)
	high := c.Map(0.9)
	assert.LessOrEqual(t, low, mid)
	assert.LessOrEqual(t, mid, high)
}

func TestCalibrator_ClipsExtremeConfidence(t *testing.T) {
	c := NewCalibrator()
	assert.Greater(t, c.Map(0.0), 0.0)
	assert.Less(t, c.Map(1.0), 1.0)
}

func TestCalibrator_ConcurrentMapDuringFit(t *testing.T) {
	c := NewCalibrator()
	points := make([]calibrationPoint, 150)
	for i := range points {
		points[i] = calibrationPoint{predicted: rand.Float64(), win: float64(i % 2)}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Fit(points)
	}()
	for i := 0; i < 100; i++ {
		_ = c.Map(0.5)
	}
	<-done
}
