package hedge

import (
	"time"
)

// Config holds the hedging policy for one client or Racer instance.
//
// A Config is validated once at construction and never mutated afterwards;
// the same value is reused across every call made through the instance.
//
// Exactly one of the two delay modes is active:
//
//   - Single-point mode (HedgePoints empty): every hedge slot fires at
//     TargetSLO * HedgeAt, or at the learned HedgeAt percentile when
//     Adaptive is on.
//   - Percentile mode (HedgePoints set): hedge k fires at
//     TargetSLO * HedgePoints[k], or at the learned percentile for that
//     point when Adaptive is on. Points must be ascending.
//
// Example:
//
//	cfg := hedge.Config{
//	    TargetSLO:       time.Second,
//	    HedgeAt:         0.95,
//	    MaxHedges:       1,
//	    CancelOnSuccess: true,
//	}
type Config struct {
	// TargetSLO is the latency objective the policy is tuned against.
	// Must be > 0.
	TargetSLO time.Duration

	// HedgeAt is the single hedge point as a fraction of TargetSLO,
	// in (0, 1]. Ignored when HedgePoints is set.
	//
	// Recommended: 0.95, i.e. hedge once a request has consumed 95% of
	// its latency budget.
	HedgeAt float64

	// HedgePoints stages multiple hedges at ascending fractions of
	// TargetSLO, each in (0, 1]. When set, HedgeAt must be zero.
	//
	// Example: []float64{0.5, 0.75, 0.95} fires up to three hedges at
	// 50%, 75% and 95% of the SLO.
	HedgePoints []float64

	// MaxHedges caps the number of duplicate attempts per call.
	// 0 disables hedging entirely (a single attempt, no racing).
	// In percentile mode the number of hedge slots is
	// min(len(HedgePoints), MaxHedges).
	MaxHedges int

	// Adaptive switches delay computation from static fractions of
	// TargetSLO to learned per-destination percentiles. Until a
	// destination has enough samples the static value is used as the
	// fallback.
	Adaptive bool

	// CancelOnSuccess propagates cancellation to every losing attempt as
	// soon as a winner is declared. Cancellation is cooperative; an
	// attempt that cannot be aborted mid-flight has its late result
	// discarded instead.
	CancelOnSuccess bool
}

// Default policy values.
const (
	// DefaultTargetSLO is the default latency objective.
	DefaultTargetSLO = time.Second

	// DefaultHedgeAt is the default single hedge point (95% of SLO).
	DefaultHedgeAt = 0.95

	// DefaultMaxHedges is the default number of duplicate attempts.
	DefaultMaxHedges = 1
)

// DefaultConfig returns a balanced policy: one hedge at 95% of a 1s SLO,
// losers cancelled once a winner is known, adaptive timing off.
func DefaultConfig() Config {
	return Config{
		TargetSLO:       DefaultTargetSLO,
		HedgeAt:         DefaultHedgeAt,
		MaxHedges:       DefaultMaxHedges,
		CancelOnSuccess: true,
	}
}

// PercentileConfig returns a policy that stages one hedge per point, each
// at the given ascending fraction of target.
//
//	cfg := hedge.PercentileConfig(time.Second, 0.5, 0.75, 0.95)
func PercentileConfig(target time.Duration, points ...float64) Config {
	return Config{
		TargetSLO:       target,
		HedgePoints:     points,
		MaxHedges:       len(points),
		CancelOnSuccess: true,
	}
}

// Validate reports whether the policy is well formed. It returns a
// *ConfigError describing the first violation, so bad policies fail at
// construction rather than at call time.
func (c Config) Validate() error {
	if c.TargetSLO <= 0 {
		return &ConfigError{Field: "TargetSLO", Reason: "must be > 0"}
	}
	if c.MaxHedges < 0 {
		return &ConfigError{Field: "MaxHedges", Reason: "must be >= 0"}
	}
	if len(c.HedgePoints) > 0 {
		if c.HedgeAt != 0 {
			return &ConfigError{Field: "HedgeAt", Reason: "cannot be combined with HedgePoints"}
		}
		prev := 0.0
		for _, p := range c.HedgePoints {
			if p <= 0 || p > 1 {
				return &ConfigError{Field: "HedgePoints", Reason: "points must be in (0, 1]"}
			}
			if p < prev {
				return &ConfigError{Field: "HedgePoints", Reason: "points must be ascending"}
			}
			prev = p
		}
		return nil
	}
	if c.HedgeAt <= 0 || c.HedgeAt > 1 {
		return &ConfigError{Field: "HedgeAt", Reason: "must be in (0, 1]"}
	}
	return nil
}

// percentileMode reports whether the multi-point mode is active.
func (c Config) percentileMode() bool {
	return len(c.HedgePoints) > 0
}

// hedgeSlots returns the number of hedge slots the policy produces.
func (c Config) hedgeSlots() int {
	if c.percentileMode() {
		if len(c.HedgePoints) < c.MaxHedges {
			return len(c.HedgePoints)
		}
	}
	return c.MaxHedges
}
