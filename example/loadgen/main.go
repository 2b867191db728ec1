// Command loadgen runs a hedged HTTP client against a simulated upstream
// with a heavy latency tail, and exposes the learned per-destination
// estimates plus Prometheus metrics on a monitoring endpoint.
//
// Run it, then watch the hedging adapt:
//
//	go run .
//	curl localhost:9090/hedge/destinations
//	curl localhost:9090/metrics
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kroma-labs/hedge-go/hedge"
	"github.com/kroma-labs/hedge-go/hedgeserver"
)

const (
	monitorAddr  = ":9090"
	requestEvery = 100 * time.Millisecond
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().
		Logger()

	// Export hedge metrics through the Prometheus default registry so the
	// monitoring server's /metrics endpoint picks them up.
	exporter, err := otelprom.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create prometheus exporter")
	}
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)))

	// Upstream with a bimodal latency profile: fast most of the time, with
	// a slow tail roughly one request in ten.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delay := time.Duration(5+rand.Intn(10)) * time.Millisecond
		if rand.Intn(10) == 0 {
			delay = time.Duration(200+rand.Intn(300)) * time.Millisecond
		}
		time.Sleep(delay)
		fmt.Fprintln(w, "ok")
	}))
	defer upstream.Close()

	cfg := hedge.PercentileConfig(150*time.Millisecond, 0.50, 0.75, 0.95)
	cfg.MaxHedges = 2
	cfg.Adaptive = true

	transport, err := hedge.NewTransport(http.DefaultTransport, cfg,
		hedge.WithLogger(logger),
		hedge.WithThrottle(hedge.ThrottleConfig{HedgesPerSecond: 50, Burst: 100}),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create hedging transport")
	}
	client := &http.Client{Transport: transport}

	monitor := hedgeserver.New(transport.Racer(),
		hedgeserver.WithAddr(monitorAddr),
		hedgeserver.WithServiceName("loadgen"),
		hedgeserver.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := monitor.ListenAndServe(ctx); err != nil {
			logger.Error().Err(err).Msg("monitoring server failed")
		}
		cancel()
	}()

	logger.Info().
		Str("upstream", upstream.URL).
		Str("monitor", monitorAddr).
		Msg("loadgen started, press Ctrl+C to stop")

	ticker := time.NewTicker(requestEvery)
	defer ticker.Stop()

	var sent, failed int
	for {
		select {
		case <-ticker.C:
			resp, err := client.Get(upstream.URL + "/items")
			sent++
			if err != nil {
				failed++
				logger.Warn().Err(err).Msg("request failed")
				continue
			}
			resp.Body.Close()

			if sent%100 == 0 {
				snap := transport.Racer().Snapshot()
				for dest, stats := range snap {
					logger.Info().
						Str("destination", dest).
						Int("samples", stats.Samples).
						Dur("p50", stats.P50).
						Dur("p95", stats.P95).
						Int("failed", failed).
						Msg("learned latency profile")
				}
			}
		case <-ctx.Done():
			logger.Info().Int("sent", sent).Int("failed", failed).Msg("loadgen stopped")
			return
		}
	}
}
