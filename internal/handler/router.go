// Package handler exposes the ops HTTP surface: liveness, readiness, and
// Prometheus metrics. There is no interactive API; failures in this system
// are observable through logs and metrics only.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HealthChecker reports per-dependency health, keyed by dependency name.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

func NewRouter(health HealthChecker, metricsHandler http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 10*time.Second)
		defer cancel()

		errs := health.HealthCheck(ctx)

		status := make(map[string]string, len(errs))
		healthy := true
		for name, err := range errs {
			if err != nil {
				status[name] = err.Error()
				healthy = false
			} else {
				status[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			logger.Warn("readiness check failed", zap.Any("status", status))
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	r.Handle("/metrics", metricsHandler)

	return r
}
