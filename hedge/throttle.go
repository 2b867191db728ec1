package hedge

import (
	"golang.org/x/time/rate"
)

// ThrottleConfig caps the rate at which hedge attempts are fired across
// every race that shares one Racer.
//
// Hedging trades extra load for latency; under a widespread slowdown every
// call starts hedging at once and the duplicates can add fuel to the fire.
// The throttle bounds that amplification: when the budget is exhausted a
// hedge slot is simply skipped and the race continues with the attempts
// already in flight. The primary attempt is never throttled.
type ThrottleConfig struct {
	// HedgesPerSecond is the maximum sustained hedge fire rate.
	HedgesPerSecond float64

	// Burst is the number of hedges allowed in a brief spike above the
	// sustained rate.
	Burst int
}

// DefaultThrottleConfig permits 10 hedges per second with a burst of 20,
// a reasonable ceiling for a single-process client.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		HedgesPerSecond: 10,
		Burst:           20,
	}
}

// throttle gates hedge attempts behind a token bucket.
type throttle struct {
	limiter *rate.Limiter
}

// newThrottle builds a throttle, or nil when the config disables it.
func newThrottle(cfg ThrottleConfig) *throttle {
	if cfg.HedgesPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &throttle{
		limiter: rate.NewLimiter(rate.Limit(cfg.HedgesPerSecond), burst),
	}
}

// allow reports whether one more hedge may fire right now. A nil throttle
// always allows.
func (t *throttle) allow() bool {
	return t == nil || t.limiter.Allow()
}
