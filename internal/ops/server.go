// Package ops exposes the operational HTTP surface of the client daemon:
// liveness, readiness against the remote backend, a status snapshot, and
// Prometheus metrics. It renders no UI.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/dutyroster/internal/remote"
)

// SessionInfo answers whether an active session exists.
type SessionInfo interface {
	Active() bool
}

// CacheInfo exposes the cache fields reported by /status.
type CacheInfo interface {
	Degraded() bool
	Len() int
}

// HealthProber checks the remote backend's public health endpoint.
type HealthProber interface {
	Health(ctx context.Context) (remote.HealthStatus, error)
}

// Status is the JSON body served by /status.
type Status struct {
	Authenticated bool `json:"authenticated"`
	Disconnected  bool `json:"disconnected"`
	CachedEntries int  `json:"cached_entries"`
}

// NewRouter wires the operational endpoints.
func NewRouter(sessions SessionInfo, cache CacheInfo, prober HealthProber) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := prober.Health(ctx); err != nil {
			http.Error(w, "remote backend unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		status := Status{
			Authenticated: sessions.Active(),
			Disconnected:  cache.Degraded(),
			CachedEntries: cache.Len(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
