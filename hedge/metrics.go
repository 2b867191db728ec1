package hedge

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the metric instruments for the race engine.
type metrics struct {
	// raceDuration measures total elapsed time per logical call in seconds.
	raceDuration metric.Float64Histogram

	// attemptsFired measures how many attempts each race started.
	attemptsFired metric.Int64Histogram

	// hedgesFired counts hedge attempts actually started.
	hedgesFired metric.Int64Counter

	// hedgesThrottled counts hedge slots skipped by the throttle.
	hedgesThrottled metric.Int64Counter

	// raceWins counts settled races by winning attempt index.
	raceWins metric.Int64Counter

	// raceFailures counts races where every attempt failed.
	raceFailures metric.Int64Counter

	// raceCancellations counts races ended by caller cancellation.
	raceCancellations metric.Int64Counter
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.raceDuration, err = meter.Float64Histogram(
		"hedge.race.duration",
		metric.WithDescription("Total elapsed time of hedged calls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.attemptsFired, err = meter.Int64Histogram(
		"hedge.race.attempts",
		metric.WithDescription("Number of attempts fired per hedged call"),
		metric.WithUnit("{attempt}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5),
	)
	if err != nil {
		return nil, err
	}

	m.hedgesFired, err = meter.Int64Counter(
		"hedge.fired",
		metric.WithDescription("Number of hedge attempts started"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.hedgesThrottled, err = meter.Int64Counter(
		"hedge.throttled",
		metric.WithDescription("Number of hedge slots skipped by the hedge throttle"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.raceWins, err = meter.Int64Counter(
		"hedge.race.wins",
		metric.WithDescription("Number of settled races by winning attempt index"),
		metric.WithUnit("{race}"),
	)
	if err != nil {
		return nil, err
	}

	m.raceFailures, err = meter.Int64Counter(
		"hedge.race.all_failed",
		metric.WithDescription("Number of races where every attempt failed"),
		metric.WithUnit("{race}"),
	)
	if err != nil {
		return nil, err
	}

	m.raceCancellations, err = meter.Int64Counter(
		"hedge.race.cancelled",
		metric.WithDescription("Number of races ended by caller cancellation"),
		metric.WithUnit("{race}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// destinationAttr labels a metric with its destination key.
func destinationAttr(destination string) attribute.KeyValue {
	return attribute.String("hedge.destination", destination)
}

// recordWin records a settled race won by the given attempt index.
func (m *metrics) recordWin(ctx context.Context, destination string, attempt int, fired int, elapsed time.Duration) {
	if m == nil {
		return
	}
	dest := destinationAttr(destination)
	if m.raceDuration != nil {
		m.raceDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(dest))
	}
	if m.attemptsFired != nil {
		m.attemptsFired.Record(ctx, int64(fired), metric.WithAttributes(dest))
	}
	if m.raceWins != nil {
		m.raceWins.Add(ctx, 1, metric.WithAttributes(
			dest,
			attribute.Int("hedge.winning_attempt", attempt),
		))
	}
}

// recordHedgeFired records one hedge attempt starting.
func (m *metrics) recordHedgeFired(ctx context.Context, destination string) {
	if m == nil || m.hedgesFired == nil {
		return
	}
	m.hedgesFired.Add(ctx, 1, metric.WithAttributes(destinationAttr(destination)))
}

// recordHedgeThrottled records one hedge slot skipped by the throttle.
func (m *metrics) recordHedgeThrottled(ctx context.Context, destination string) {
	if m == nil || m.hedgesThrottled == nil {
		return
	}
	m.hedgesThrottled.Add(ctx, 1, metric.WithAttributes(destinationAttr(destination)))
}

// recordAllFailed records a race in which every attempt failed.
func (m *metrics) recordAllFailed(ctx context.Context, destination string, fired int, elapsed time.Duration) {
	if m == nil {
		return
	}
	dest := destinationAttr(destination)
	if m.raceDuration != nil {
		m.raceDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(dest))
	}
	if m.attemptsFired != nil {
		m.attemptsFired.Record(ctx, int64(fired), metric.WithAttributes(dest))
	}
	if m.raceFailures != nil {
		m.raceFailures.Add(ctx, 1, metric.WithAttributes(dest))
	}
}

// recordCancelled records a race ended by caller cancellation.
func (m *metrics) recordCancelled(ctx context.Context, destination string) {
	if m == nil || m.raceCancellations == nil {
		return
	}
	m.raceCancellations.Add(ctx, 1, metric.WithAttributes(destinationAttr(destination)))
}
