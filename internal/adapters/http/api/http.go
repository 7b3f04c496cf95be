// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/fantasylive/internal/adapters/repository"
	service "github.com/okian/fantasylive/internal/app"
	"github.com/okian/fantasylive/internal/domain/alerting"
	"github.com/okian/fantasylive/internal/domain/classify"
	"github.com/okian/fantasylive/pkg/logger"
)

const maxBodyBytes = 4 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the engine.
type Dependencies interface {
	UpdateDependencies
	QueryDependencies
	LineupDependencies
	AlertDependencies
	ControlDependencies
	StatsProvider
}

// Server wires HTTP routes for the engine API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	updatesHandler *UpdatesHandler
	queryHandler   *QueryHandler
	lineupHandler  *LineupHandler
	alertHandler   *AlertHandler
	controlHandler *ControlHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(deps),
		updatesHandler: NewUpdatesHandler(deps),
		queryHandler:   NewQueryHandler(deps),
		lineupHandler:  NewLineupHandler(deps),
		alertHandler:   NewAlertHandler(deps),
		controlHandler: NewControlHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /updates", MetricsMiddleware(s.updatesHandler.HandlePostUpdates, "updates"))

	mux.HandleFunc("GET /games", MetricsMiddleware(s.queryHandler.HandleGetGames, "games"))
	mux.HandleFunc("GET /players", MetricsMiddleware(s.queryHandler.HandleGetPlayers, "players"))
	mux.HandleFunc("GET /players/{id}", MetricsMiddleware(s.queryHandler.HandleGetPlayer, "player"))

	mux.HandleFunc("GET /lineups/{id}", MetricsMiddleware(s.lineupHandler.HandleGetLineup, "lineup"))
	mux.HandleFunc("PUT /lineups/{id}", MetricsMiddleware(s.lineupHandler.HandlePutLineup, "lineup"))
	mux.HandleFunc("DELETE /lineups/{id}", MetricsMiddleware(s.lineupHandler.HandleDeleteLineup, "lineup"))

	mux.HandleFunc("GET /alerts", MetricsMiddleware(s.alertHandler.HandleGetAlerts, "alerts"))
	mux.HandleFunc("POST /alerts/{playerId}/ack", MetricsMiddleware(s.alertHandler.HandleAck, "alerts_ack"))
	mux.HandleFunc("GET /trade-alerts", MetricsMiddleware(s.alertHandler.HandleGetTradeAlerts, "trade_alerts"))

	mux.HandleFunc("POST /control/pause", MetricsMiddleware(s.controlHandler.HandlePause, "control"))
	mux.HandleFunc("POST /control/resume", MetricsMiddleware(s.controlHandler.HandleResume, "control"))
	mux.HandleFunc("GET /control/config", MetricsMiddleware(s.controlHandler.HandleGetConfig, "control"))
	mux.HandleFunc("PATCH /control/config", MetricsMiddleware(s.controlHandler.HandlePatchConfig, "control"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before the status goes out so an unencodable value
// still gets a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Get().Named("http").Error(context.Background(), "response encoding failed",
			logger.Int("status", status),
			logger.Error(err),
		)
		body = []byte(`{"code":"internal_error","message":"response encoding failed"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	writeError(w, status, code, err)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnavailable), errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrPaused):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, classify.ErrMalformedUpdate),
		errors.Is(err, service.ErrInvalidPatch),
		errors.Is(err, service.ErrInvalidLineup):
		return http.StatusBadRequest, "bad_request"
	case isNotFound(err):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal_error"
}

// isNotFound allows the API to translate upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, alerting.ErrLineupNotFound)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
