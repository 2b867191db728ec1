package hedge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExecuteFunc performs one attempt of the logical request. It is supplied
// by the surrounding transport layer and must be safe to call concurrently
// for the same logical request. The attempt index is 0 for the primary and
// 1..N for hedges in fire order.
//
// Cancellation is cooperative: when the race abandons an attempt its ctx
// is cancelled, and a late result is discarded rather than returned.
type ExecuteFunc func(ctx context.Context, attempt int) (any, error)

// Result is the outcome of one winning race.
type Result struct {
	// Value is the winning attempt's result.
	Value any

	// Attempt is the winning attempt's index (0 = primary).
	Attempt int

	// Latency is the winning attempt's own round-trip time, measured from
	// when that attempt fired. This is the sample recorded for learning.
	Latency time.Duration

	// Fired is the number of attempts actually started.
	Fired int

	// Elapsed is the total time from call start to the winning result.
	Elapsed time.Duration

	// Failures holds the attempts that failed before the winner emerged,
	// in firing order, each wrapped as *AttemptError. Empty when the
	// primary won outright.
	Failures []error
}

// Racer races a primary attempt against delayed hedges and returns the
// first success. One Racer is built per policy and shared across calls;
// its only cross-call state is the latency tracker.
type Racer struct {
	cfg      Config
	est      *estimator
	tracker  *LatencyTracker
	throttle *throttle
	metrics  *metrics
	logger   zerolog.Logger
	discard  func(value any)
}

// New creates a Racer for a validated policy. Invalid policies fail here
// with a *ConfigError, never at call time.
func New(cfg Config, opts ...Option) (*Racer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts...)

	tracker := o.buildTracker()
	m, _ := newMetrics(o.buildMeter())

	return &Racer{
		cfg:      cfg,
		est:      newEstimator(cfg, tracker),
		tracker:  tracker,
		throttle: newThrottle(o.throttle),
		metrics:  m,
		logger:   o.logger,
		discard:  o.discard,
	}, nil
}

// Tracker returns the latency tracker backing adaptive estimates.
func (r *Racer) Tracker() *LatencyTracker {
	return r.tracker
}

// Snapshot returns the learned per-destination percentile estimates.
func (r *Racer) Snapshot() map[string]DestinationStats {
	return r.tracker.Snapshot()
}

// attemptOutcome is one attempt's terminal report. Every hedge slot posts
// exactly one outcome, with skipped set when the slot never started (a
// winner was already known, the throttle refused, or the call ended).
type attemptOutcome struct {
	index   int
	value   any
	err     error
	latency time.Duration
	skipped bool
}

// Do executes one logical call against the destination.
//
// The primary fires immediately; hedge k fires at its offset from call
// start unless a winner is already known by then. All started attempts run
// concurrently and the first success wins, regardless of index: successes
// are consumed from a single completion channel in arrival order, so a
// dead heat is broken deterministically by whichever result was enqueued
// first. Failures never abort the race while another attempt remains.
//
// Do returns the winner's Result, or *AllFailedError when every fired
// attempt failed, or *RaceCancelledError when ctx ended the call first.
// The winning latency is recorded into the tracker for future estimates.
func (r *Racer) Do(ctx context.Context, destination string, execute ExecuteFunc) (*Result, error) {
	start := time.Now()

	var delays []time.Duration
	if r.cfg.MaxHedges > 0 {
		delays = r.est.delays(destination)
	}
	total := len(delays) + 1

	raceCtx, cancelRace := context.WithCancel(ctx)
	defer cancelRace()

	// Losers keep running after a win unless CancelOnSuccess; they then
	// answer to the caller's context alone.
	attemptCtx := raceCtx
	if !r.cfg.CancelOnSuccess {
		attemptCtx = ctx
	}

	// Buffered to the attempt count so no sender ever blocks; stragglers
	// are reaped after the race settles.
	outcomes := make(chan attemptOutcome, total)
	winnerKnown := make(chan struct{})

	var wg sync.WaitGroup
	var fired atomic.Int32

	run := func(idx int) {
		fired.Add(1)
		attemptStart := time.Now()
		value, err := execute(attemptCtx, idx)
		outcomes <- attemptOutcome{
			index:   idx,
			value:   value,
			err:     err,
			latency: time.Since(attemptStart),
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		run(0)
	}()

	for i, delay := range delays {
		idx := i + 1
		wg.Add(1)
		go func(idx int, delay time.Duration) {
			defer wg.Done()

			timer := time.NewTimer(delay)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				outcomes <- attemptOutcome{index: idx, skipped: true}
				return
			case <-winnerKnown:
				outcomes <- attemptOutcome{index: idx, skipped: true}
				return
			case <-timer.C:
			}

			// The winner may have landed in the same instant the timer
			// fired; a settled race never starts another attempt.
			select {
			case <-winnerKnown:
				outcomes <- attemptOutcome{index: idx, skipped: true}
				return
			default:
			}

			if !r.throttle.allow() {
				r.metrics.recordHedgeThrottled(ctx, destination)
				outcomes <- attemptOutcome{index: idx, skipped: true}
				return
			}

			r.metrics.recordHedgeFired(ctx, destination)
			run(idx)
		}(idx, delay)
	}

	raceID := uuid.NewString()
	causes := make([]error, total)

	for received := 0; received < total; received++ {
		var o attemptOutcome
		select {
		case o = <-outcomes:
		default:
			// Nothing buffered: block until an outcome arrives or the
			// caller gives up on the whole race.
			select {
			case o = <-outcomes:
			case <-ctx.Done():
				cancelRace()
				close(winnerKnown)
				r.metrics.recordCancelled(ctx, destination)
				r.logger.Debug().
					Str("race_id", raceID).
					Str("destination", destination).
					Int("fired", int(fired.Load())).
					Msg("hedged call cancelled")
				go r.reap(&wg, outcomes)
				return nil, &RaceCancelledError{Destination: destination, Err: context.Cause(ctx)}
			}
		}

		if o.skipped {
			continue
		}
		if o.err != nil {
			causes[o.index] = o.err
			continue
		}

		// Winner.
		close(winnerKnown)
		if r.cfg.CancelOnSuccess {
			cancelRace()
		}
		r.tracker.Record(destination, o.latency)

		res := &Result{
			Value:    o.value,
			Attempt:  o.index,
			Latency:  o.latency,
			Fired:    int(fired.Load()),
			Elapsed:  time.Since(start),
			Failures: attemptFailures(causes),
		}
		r.metrics.recordWin(ctx, destination, res.Attempt, res.Fired, res.Elapsed)
		r.logger.Debug().
			Str("race_id", raceID).
			Str("destination", destination).
			Int("winning_attempt", res.Attempt).
			Int("fired", res.Fired).
			Dur("latency", res.Latency).
			Dur("elapsed", res.Elapsed).
			Msg("hedged call won")
		go r.reap(&wg, outcomes)
		return res, nil
	}

	// Every slot settled without a success.
	elapsed := time.Since(start)
	firedCount := int(fired.Load())
	err := &AllFailedError{
		Destination: destination,
		Causes:      attemptFailures(causes),
	}
	r.metrics.recordAllFailed(ctx, destination, firedCount, elapsed)
	r.logger.Debug().
		Str("race_id", raceID).
		Str("destination", destination).
		Int("fired", firedCount).
		Dur("elapsed", elapsed).
		Msg("hedged call failed on all attempts")
	return nil, err
}

// reap waits for the remaining attempts to settle, then releases any
// successful results that lost the race so nothing leaks.
func (r *Racer) reap(wg *sync.WaitGroup, outcomes chan attemptOutcome) {
	wg.Wait()
	close(outcomes)
	for o := range outcomes {
		if !o.skipped && o.err == nil && r.discard != nil {
			r.discard(o.value)
		}
	}
}

// attemptFailures collects the non-nil causes in firing order, wrapped
// with their attempt index.
func attemptFailures(causes []error) []error {
	var out []error
	for idx, err := range causes {
		if err != nil {
			out = append(out, &AttemptError{Attempt: idx, Err: err})
		}
	}
	return out
}
