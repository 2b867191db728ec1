package hedgeserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kroma-labs/hedge-go/hedge"
)

// SnapshotSource provides per-destination latency statistics.
//
// *hedge.Racer satisfies this interface; any other source of
// destination stats works as well.
type SnapshotSource interface {
	Snapshot() map[string]hedge.DestinationStats
}

// destinationsResponse is the payload of GET /hedge/destinations.
type destinationsResponse struct {
	Service      string                            `json:"service"`
	Timestamp    time.Time                         `json:"timestamp"`
	Destinations map[string]hedge.DestinationStats `json:"destinations"`
}

// Routes builds the HTTP routes for the monitoring surface.
//
// Use this directly to mount the endpoints on an existing router;
// New() calls it internally.
func Routes(source SnapshotSource, serviceName string) http.Handler {
	r := chi.NewRouter()

	r.Get("/hedge/destinations", destinationsHandler(source, serviceName))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ping", pingHandler)

	return r
}

// destinationsHandler serves the learned latency estimates.
//
// An optional ?destination= query parameter restricts the response to a
// single destination; an unknown destination returns 404.
func destinationsHandler(source SnapshotSource, serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := source.Snapshot()

		if dest := r.URL.Query().Get("destination"); dest != "" {
			stats, ok := snapshot[dest]
			if !ok {
				writeError(w, http.StatusNotFound, "unknown destination")
				return
			}
			snapshot = map[string]hedge.DestinationStats{dest: stats}
		}

		writeJSON(w, http.StatusOK, destinationsResponse{
			Service:      serviceName,
			Timestamp:    time.Now().UTC(),
			Destinations: snapshot,
		})
	}
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
