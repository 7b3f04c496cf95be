package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/fantasylive/pkg/metrics"
)

// HealthDependencies reports engine liveness.
type HealthDependencies interface {
	Started() bool
	Paused() bool
	StatsProvider
}

// HealthHandler handles health check and metrics scrape requests.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type healthResponse struct {
	Status     string `json:"status"`
	Paused     bool   `json:"paused"`
	StaleFeeds int    `json:"staleFeeds"`
	QueueDepth int    `json:"queueDepth"`
}

// HandleHealth handles GET /healthz. A stopped engine answers 503; stale
// feeds degrade the status but still answer 200.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Started() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "stopped"})
		return
	}
	pm := h.deps.PerformanceMetrics(r.Context())
	resp := healthResponse{
		Status:     "ok",
		Paused:     h.deps.Paused(),
		StaleFeeds: pm.StaleFeeds,
		QueueDepth: pm.QueueDepth,
	}
	if pm.Stale() {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// MetricsHandler serves the engine's Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
