package hedge

import (
	"math"
	"time"
)

// delayStrategy computes the hedge fire offsets for one logical call.
// The strategy is fixed at construction: static policies never touch the
// tracker, adaptive ones consult it on every call.
type delayStrategy interface {
	delays(destination string) []time.Duration
}

// estimator turns the configured policy into concrete, monotonically
// non-decreasing hedge delays. A delay of 0 fires the hedge alongside the
// primary.
type estimator struct {
	strategy delayStrategy
}

// newEstimator builds the delay strategy for a validated config.
func newEstimator(cfg Config, tracker *LatencyTracker) *estimator {
	var points []float64
	if cfg.percentileMode() {
		points = cfg.HedgePoints[:cfg.hedgeSlots()]
	} else {
		// Single-point mode: every hedge slot shares the one point.
		points = make([]float64, cfg.hedgeSlots())
		for i := range points {
			points[i] = cfg.HedgeAt
		}
	}

	if cfg.Adaptive {
		return &estimator{strategy: &adaptiveDelays{
			target:  cfg.TargetSLO,
			points:  points,
			tracker: tracker,
		}}
	}
	return &estimator{strategy: &staticDelays{
		target: cfg.TargetSLO,
		points: points,
	}}
}

// delays returns one non-negative offset per hedge slot, clipped so that
// later hedges never fire before earlier ones.
func (e *estimator) delays(destination string) []time.Duration {
	ds := e.strategy.delays(destination)
	var prev time.Duration
	for i, d := range ds {
		if d < 0 {
			d = 0
		}
		if d < prev {
			d = prev
		}
		ds[i] = d
		prev = d
	}
	return ds
}

// staticDelays derives every offset from the target SLO alone.
type staticDelays struct {
	target time.Duration
	points []float64
}

func (s *staticDelays) delays(string) []time.Duration {
	ds := make([]time.Duration, len(s.points))
	for i, p := range s.points {
		ds[i] = fraction(s.target, p)
	}
	return ds
}

// adaptiveDelays uses learned per-destination percentiles, falling back to
// the static value while the destination is still cold.
type adaptiveDelays struct {
	target  time.Duration
	points  []float64
	tracker *LatencyTracker
}

func (a *adaptiveDelays) delays(destination string) []time.Duration {
	ds := make([]time.Duration, len(a.points))
	for i, p := range a.points {
		ds[i] = a.tracker.Percentile(destination, p, fraction(a.target, p))
	}
	return ds
}

// fraction scales a duration by a point in (0, 1], rounding to the
// nearest nanosecond so 0.95 of a second is exactly 950ms.
func fraction(d time.Duration, p float64) time.Duration {
	return time.Duration(math.Round(float64(d) * p))
}
