package hedge

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker learns per-destination latency distributions for adaptive
// hedge timing.
//
// It keeps a bounded sliding window of successful round-trip durations per
// destination and derives empirical percentiles from it. The window is
// deliberately small: it bounds memory per destination and keeps estimates
// responsive when a backend's latency regime shifts.
//
// Each destination's window carries its own lock, so concurrent races
// against unrelated destinations never contend with each other.
type LatencyTracker struct {
	mu         sync.RWMutex
	windows    map[string]*latencyWindow
	windowSize int
	minSamples int
}

// latencyWindow is a fixed-capacity ring buffer of latency samples.
// Oldest samples are evicted first once the window is full.
type latencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	head    int
	count   int
}

// Tracker sizing defaults.
const (
	// DefaultWindowSize is the number of samples kept per destination.
	DefaultWindowSize = 100

	// DefaultMinSamples is the number of samples required before a
	// percentile estimate is trusted over the static fallback.
	DefaultMinSamples = 2
)

// NewLatencyTracker creates a tracker keeping windowSize samples per
// destination and requiring minSamples before estimating percentiles.
// Non-positive arguments fall back to the package defaults.
func NewLatencyTracker(windowSize, minSamples int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &LatencyTracker{
		windows:    make(map[string]*latencyWindow),
		windowSize: windowSize,
		minSamples: minSamples,
	}
}

// window returns the destination's window, creating it on first use.
func (t *LatencyTracker) window(destination string, create bool) *latencyWindow {
	t.mu.RLock()
	w, ok := t.windows[destination]
	t.mu.RUnlock()
	if ok || !create {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.windows[destination]; ok {
		return w
	}
	w = &latencyWindow{samples: make([]time.Duration, t.windowSize)}
	t.windows[destination] = w
	return w
}

// Record appends a successful round-trip latency to the destination's
// window, evicting the oldest sample once the window is at capacity.
// Failed attempts must not be recorded; only successes inform timing.
func (t *LatencyTracker) Record(destination string, latency time.Duration) {
	w := t.window(destination, true)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.head] = latency
	w.head = (w.head + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// Percentile returns the empirical percentile of the destination's window
// for p in (0, 1], using linear interpolation between order statistics.
// When fewer than the minimum number of samples exist, fallback is
// returned instead.
func (t *LatencyTracker) Percentile(destination string, p float64, fallback time.Duration) time.Duration {
	d, ok := t.percentile(destination, p)
	if !ok {
		return fallback
	}
	return d
}

// percentile computes the estimate, reporting whether enough samples exist.
func (t *LatencyTracker) percentile(destination string, p float64) (time.Duration, bool) {
	w := t.window(destination, false)
	if w == nil {
		return 0, false
	}

	w.mu.Lock()
	if w.count < t.minSamples {
		w.mu.Unlock()
		return 0, false
	}
	// Copy in insertion order (oldest first) so a stable sort resolves
	// ties by arrival, keeping results deterministic for a given window.
	samples := make([]time.Duration, w.count)
	if w.count < len(w.samples) {
		copy(samples, w.samples[:w.count])
	} else {
		n := copy(samples, w.samples[w.head:])
		copy(samples[n:], w.samples[:w.head])
	}
	w.mu.Unlock()

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i] < samples[j]
	})

	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	// Linear interpolation between the two nearest order statistics.
	rank := p * float64(len(samples)-1)
	lo := int(rank)
	if lo >= len(samples)-1 {
		return samples[len(samples)-1], true
	}
	frac := rank - float64(lo)
	delta := float64(samples[lo+1] - samples[lo])
	return samples[lo] + time.Duration(frac*delta), true
}

// Count returns the number of samples currently held for a destination.
func (t *LatencyTracker) Count(destination string) int {
	w := t.window(destination, false)
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Reset drops all learned state for every destination.
func (t *LatencyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = make(map[string]*latencyWindow)
}

// DestinationStats is a read-only snapshot of what the tracker has learned
// about one destination. Percentile fields are zero until the destination
// has reached the minimum sample count.
type DestinationStats struct {
	// Samples is the number of latencies currently in the window.
	Samples int `json:"samples"`

	// P50, P90, P95 and P99 are the learned percentile estimates.
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// Snapshot returns the learned percentile estimates for every destination,
// for monitoring. The result is a copy and safe to retain.
func (t *LatencyTracker) Snapshot() map[string]DestinationStats {
	t.mu.RLock()
	destinations := make([]string, 0, len(t.windows))
	for d := range t.windows {
		destinations = append(destinations, d)
	}
	t.mu.RUnlock()

	snap := make(map[string]DestinationStats, len(destinations))
	for _, d := range destinations {
		stats := DestinationStats{Samples: t.Count(d)}
		if p, ok := t.percentile(d, 0.50); ok {
			stats.P50 = p
		}
		if p, ok := t.percentile(d, 0.90); ok {
			stats.P90 = p
		}
		if p, ok := t.percentile(d, 0.95); ok {
			stats.P95 = p
		}
		if p, ok := t.percentile(d, 0.99); ok {
			stats.P99 = p
		}
		snap[d] = stats
	}
	return snap
}
