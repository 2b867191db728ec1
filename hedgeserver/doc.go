// Package hedgeserver exposes a hedging client's learned state over HTTP
// for monitoring: per-destination latency percentiles, Prometheus metrics
// and a liveness probe.
//
// The server is intended to run as a sidecar endpoint inside the process
// that owns the hedged clients:
//
//	racer, _ := hedge.New(hedge.DefaultConfig())
//
//	server := hedgeserver.New(racer,
//	    hedgeserver.WithAddr(":9090"),
//	    hedgeserver.WithServiceName("payment-service"),
//	)
//
//	// Blocks until shutdown signal (SIGTERM, SIGINT) or context cancellation.
//	if err := server.ListenAndServe(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Endpoints:
//
//	GET /hedge/destinations   learned percentile estimates per destination
//	GET /metrics              Prometheus metrics
//	GET /ping                 liveness probe
package hedgeserver
