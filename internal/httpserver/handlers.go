package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nbari/pg-exporter/internal/collector"
	"github.com/nbari/pg-exporter/internal/log"
)

// healthPingTimeout bounds the /health probe, matching the 2-second cap
// used for connection acquisition at startup.
const healthPingTimeout = 2 * time.Second

// metricsHandler drives one full scrape via registry.Gather and returns
// the Prometheus text exposition payload. The status is always 200:
// scrape failures surface as pg_up=0 in the body, not as an HTTP error,
// and a gather/encoding error is appended to the body as a "# error:"
// comment line.
func metricsHandler(registry *collector.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := registry.Gather(r.Context())
		if err != nil {
			log.Errorf("gather failed: %s", err)
			payload = append(payload, fmt.Sprintf("# error: %s\n", err)...)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(payload); err != nil {
			log.Warnf("metrics response write failed: %s", err)
		}
	}
}

// healthResponse is the JSON body returned by /health.
type healthResponse struct {
	Commit   string `json:"commit"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// healthHandler acquires a connection from the shared pool and pings it;
// GET and OPTIONS run the same probe, OPTIONS just returns no body. Any
// other method is rejected.
func healthHandler(cfg Config, registry *collector.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodOptions {
			w.Header().Set("Allow", "GET, OPTIONS")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		resp := healthResponse{
			Commit:   cfg.Commit,
			Name:     cfg.Name,
			Version:  cfg.Version,
			Database: "ok",
		}

		status := http.StatusOK
		if err := registry.DB().Ping(ctx); err != nil {
			log.Warnf("health ping failed: %s", err)
			resp.Database = "error"
			status = http.StatusServiceUnavailable
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warnf("health response encode failed: %s", err)
		}
	}
}
