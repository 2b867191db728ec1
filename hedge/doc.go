// Package hedge reduces tail latency for outbound request/response calls by
// racing a primary attempt against one or more delayed duplicates ("hedges")
// and returning the first successful result.
//
// The technique follows Google's "The Tail at Scale" paper: when a small
// fraction of slow responses dominates user-perceived latency, firing a
// duplicate attempt once the original has been in flight for roughly the
// P95 latency cuts the tail dramatically at the cost of a few percent of
// extra requests.
//
// IMPORTANT: Hedging duplicates in-flight work. Only hedge operations that
// are safe to execute more than once. The HTTP transport in this package
// refuses to hedge non-idempotent methods unless explicitly allowed.
//
// # Quick Start
//
// Race an arbitrary operation with the engine directly:
//
//	racer, err := hedge.New(hedge.Config{
//	    TargetSLO:       time.Second,
//	    HedgeAt:         0.95,
//	    MaxHedges:       1,
//	    CancelOnSuccess: true,
//	})
//
//	res, err := racer.Do(ctx, "billing-api", func(ctx context.Context, attempt int) (any, error) {
//	    return callBackend(ctx)
//	})
//
// Or wrap an HTTP client so every request is hedged transparently:
//
//	client := hedge.NewClient(hedge.DefaultConfig())
//	resp, err := client.Get("https://api.example.com/users")
//
// # Static vs Adaptive Delays
//
// With static delays the hedge fires at a fixed fraction of the target SLO
// (e.g. 95% of a 1s SLO fires the hedge at 950ms). With Adaptive enabled,
// the engine learns the latency distribution per destination and fires the
// hedge at the observed percentile instead, so the timing tracks the
// backend's real behavior:
//
//	racer, err := hedge.New(hedge.Config{
//	    TargetSLO: time.Second,
//	    HedgeAt:   0.95,
//	    MaxHedges: 1,
//	    Adaptive:  true,
//	})
//
// Multiple hedge points stage several duplicates at increasing offsets:
//
//	cfg := hedge.PercentileConfig(time.Second, 0.5, 0.75, 0.95)
//
// # Observability
//
// The engine emits OpenTelemetry metrics (race duration, hedges fired,
// wins by attempt index, races failed or cancelled) and optional zerolog
// debug output per race. Learned per-destination percentiles are exposed
// via Snapshot() and can be served over HTTP with the hedgeserver package.
package hedge
