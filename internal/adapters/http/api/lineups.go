package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/fantasylive/internal/domain/model"
)

// LineupDependencies manages tracked fantasy lineups.
type LineupDependencies interface {
	TrackLineup(ctx context.Context, l model.Lineup) (model.LineupOptimization, bool, error)
	UntrackLineup(lineupID string) error
	Lineup(lineupID string) (*model.Lineup, error)
	LineupOptimization(lineupID string) (model.LineupOptimization, error)
}

// LineupHandler handles lineup requests.
type LineupHandler struct {
	deps LineupDependencies
}

// NewLineupHandler creates a new lineup handler.
func NewLineupHandler(deps LineupDependencies) *LineupHandler {
	return &LineupHandler{deps: deps}
}

type lineupResponse struct {
	Lineup       *model.Lineup            `json:"lineup"`
	Optimization model.LineupOptimization `json:"optimization"`
	Needed       bool                     `json:"optimizationNeeded"`
}

// HandleGetLineup handles GET /lineups/{id}.
func (h *LineupHandler) HandleGetLineup(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_lineup"

	id := r.PathValue("id")
	l, err := h.deps.Lineup(id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	opt, err := h.deps.LineupOptimization(id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, lineupResponse{
		Lineup:       l,
		Optimization: opt,
		Needed:       len(opt.Recommendations) > 0,
	})
}

// HandlePutLineup handles PUT /lineups/{id}. The path id wins over any id in
// the body.
func (h *LineupHandler) HandlePutLineup(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_lineup"

	var l model.Lineup
	if err := decodeJSON(w, r, &l); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	id := r.PathValue("id")
	if l.ID != "" && l.ID != id {
		writeError(w, http.StatusBadRequest, "bad_request",
			WrapKind(op, ErrBadRequest, fmt.Errorf("body id %q does not match path id %q", l.ID, id)))
		return
	}
	l.ID = id

	opt, needed, err := h.deps.TrackLineup(r.Context(), l)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, lineupResponse{Lineup: &l, Optimization: opt, Needed: needed})
}

// HandleDeleteLineup handles DELETE /lineups/{id}.
func (h *LineupHandler) HandleDeleteLineup(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_lineup"

	if err := h.deps.UntrackLineup(r.PathValue("id")); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
