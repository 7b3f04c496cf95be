package api

import (
	"context"
	"net/http"

	"github.com/okian/fantasylive/internal/domain/model"
)

// AlertDependencies exposes alerts and trade signals.
type AlertDependencies interface {
	ActiveAlerts() []model.Alert
	Acknowledge(ctx context.Context, playerID string) bool
	ActiveTradeAlerts() []model.TradeSignal
	AllTradeAlerts() []model.TradeSignal
}

// AlertHandler handles alert requests.
type AlertHandler struct {
	deps AlertDependencies
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(deps AlertDependencies) *AlertHandler {
	return &AlertHandler{deps: deps}
}

type ackResponse struct {
	PlayerID     string `json:"playerId"`
	Acknowledged bool   `json:"acknowledged"`
}

// HandleGetAlerts handles GET /alerts.
func (h *AlertHandler) HandleGetAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := h.deps.ActiveAlerts()
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// HandleAck handles POST /alerts/{playerId}/ack. A player with no active
// alert answers 404.
func (h *AlertHandler) HandleAck(w http.ResponseWriter, r *http.Request) {
	const op = "api.ack_alert"

	playerID := r.PathValue("playerId")
	if !h.deps.Acknowledge(r.Context(), playerID) {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{PlayerID: playerID, Acknowledged: true})
}

// HandleGetTradeAlerts handles GET /trade-alerts[?all=true]. Without all only
// unexpired signals are returned.
func (h *AlertHandler) HandleGetTradeAlerts(w http.ResponseWriter, r *http.Request) {
	signals := h.deps.ActiveTradeAlerts()
	if r.URL.Query().Get("all") == "true" {
		signals = h.deps.AllTradeAlerts()
	}
	if signals == nil {
		signals = []model.TradeSignal{}
	}
	writeJSON(w, http.StatusOK, signals)
}
