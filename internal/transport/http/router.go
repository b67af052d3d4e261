// Package httptransport is the thin inbound event surface. Handlers decode
// JSON, delegate to the domain services, and map typed outcomes to status
// codes; no business logic lives here.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the four inbound events plus health and metrics.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/events/challenge", h.handleChallengeOpen)
	r.Post("/events/response", h.handleHandshakeResponse)
	r.Post("/events/telemetry", h.handleTelemetry)
	r.Post("/events/timeout-check", h.handleTimeoutCheck)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
