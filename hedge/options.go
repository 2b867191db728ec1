package hedge

import (
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/hedge-go/hedge"
)

// options holds the assembled option state for New and NewTransport.
type options struct {
	tracker       *LatencyTracker
	windowSize    int
	minSamples    int
	logger        zerolog.Logger
	meterProvider metric.MeterProvider
	throttle      ThrottleConfig
	discard       func(value any)

	// Transport-only settings, ignored by New.
	classifier         ResponseClassifier
	keyFunc            DestinationKeyFunc
	allowNonIdempotent bool
	coalesce           bool
}

// Option configures a Racer or Transport.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		windowSize: DefaultWindowSize,
		minSamples: DefaultMinSamples,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// buildTracker returns the caller-supplied tracker or a fresh one.
func (o *options) buildTracker() *LatencyTracker {
	if o.tracker != nil {
		return o.tracker
	}
	return NewLatencyTracker(o.windowSize, o.minSamples)
}

// buildMeter resolves the meter for engine instruments.
func (o *options) buildMeter() metric.Meter {
	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	return mp.Meter(scope)
}

// WithTracker shares a LatencyTracker between instances, e.g. so several
// clients hitting the same destinations pool their learned latencies.
func WithTracker(t *LatencyTracker) Option {
	return func(o *options) {
		o.tracker = t
	}
}

// WithWindow sizes the per-destination latency window: windowSize samples
// kept, minSamples required before adaptive estimates are trusted.
// Ignored when WithTracker supplies a tracker.
func WithWindow(windowSize, minSamples int) Option {
	return func(o *options) {
		o.windowSize = windowSize
		o.minSamples = minSamples
	}
}

// WithLogger enables per-race debug logging.
//
// Example:
//
//	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
//	racer, err := hedge.New(cfg, hedge.WithLogger(logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMeterProvider sets the OpenTelemetry MeterProvider for engine
// metrics. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithThrottle caps the rate at which hedges are fired across all races
// sharing the instance. See ThrottleConfig.
func WithThrottle(cfg ThrottleConfig) Option {
	return func(o *options) {
		o.throttle = cfg
	}
}

// WithDiscard installs a hook invoked for every successful result that
// lost the race. Use it to release resources a discarded result still
// holds (the HTTP transport closes response bodies this way).
func WithDiscard(fn func(value any)) Option {
	return func(o *options) {
		o.discard = fn
	}
}

// WithResponseClassifier decides which HTTP responses count as success for
// the race. Responses rejected by the classifier become attempt failures
// (and may be outraced by a hedge), but whether a rejected status is
// retriable remains the caller's judgment. Default: DefaultClassifier.
func WithResponseClassifier(fn ResponseClassifier) Option {
	return func(o *options) {
		o.classifier = fn
	}
}

// WithDestinationKeyFunc overrides how the HTTP transport buckets latency
// history. The default key is "METHOD scheme://host/path"; override it
// when paths embed volatile segments (IDs, tokens) that would fragment
// the distribution:
//
//	hedge.WithDestinationKeyFunc(func(req *http.Request) string {
//	    return req.Method + " " + req.URL.Host + " /users/{id}"
//	})
func WithDestinationKeyFunc(fn DestinationKeyFunc) Option {
	return func(o *options) {
		o.keyFunc = fn
	}
}

// WithAllowNonIdempotent lets the HTTP transport hedge non-idempotent
// methods (POST, PATCH, ...). Hedging duplicates side effects; opt in only
// when the backend deduplicates (e.g. via idempotency keys).
func WithAllowNonIdempotent() Option {
	return func(o *options) {
		o.allowNonIdempotent = true
	}
}

// WithCoalescing deduplicates identical concurrent GET requests through
// the transport, so simultaneous callers share a single hedged race
// instead of multiplying attempts.
func WithCoalescing() Option {
	return func(o *options) {
		o.coalesce = true
	}
}

// RoundTripper is the transport interface consumed by NewTransport,
// matching http.RoundTripper.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}
