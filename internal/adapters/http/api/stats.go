package api

import (
	"context"
	"net/http"

	"github.com/okian/fantasylive/internal/domain/types"
)

// StatsProvider defines the interface for getting engine statistics.
type StatsProvider interface {
	PerformanceMetrics(ctx context.Context) types.PerformanceMetrics
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statsProvider.PerformanceMetrics(r.Context()))
}
