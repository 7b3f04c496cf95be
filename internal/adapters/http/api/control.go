package api

import (
	"context"
	"net/http"

	service "github.com/okian/fantasylive/internal/app"
)

// ControlDependencies drives the engine lifecycle and runtime settings.
type ControlDependencies interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Started() bool
	Paused() bool
	Settings() service.Settings
	UpdateConfig(ctx context.Context, patch service.ConfigPatch) (service.Settings, error)
}

// ControlHandler handles control requests.
type ControlHandler struct {
	deps ControlDependencies
}

// NewControlHandler creates a new control handler.
func NewControlHandler(deps ControlDependencies) *ControlHandler {
	return &ControlHandler{deps: deps}
}

type controlResponse struct {
	Paused   bool             `json:"paused"`
	Settings service.Settings `json:"settings"`
}

// HandlePause handles POST /control/pause.
func (h *ControlHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Pause(r.Context()); err != nil {
		writeFailure(w, Wrap("api.pause", err))
		return
	}
	h.writeState(w)
}

// HandleResume handles POST /control/resume.
func (h *ControlHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Resume(r.Context()); err != nil {
		writeFailure(w, Wrap("api.resume", err))
		return
	}
	h.writeState(w)
}

// HandleGetConfig handles GET /control/config.
func (h *ControlHandler) HandleGetConfig(w http.ResponseWriter, _ *http.Request) {
	h.writeState(w)
}

// HandlePatchConfig handles PATCH /control/config. Fields left out of the
// body keep their current value.
func (h *ControlHandler) HandlePatchConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_config"

	var patch service.ConfigPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	settings, err := h.deps.UpdateConfig(r.Context(), patch)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, controlResponse{Paused: h.deps.Paused(), Settings: settings})
}

func (h *ControlHandler) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, controlResponse{Paused: h.deps.Paused(), Settings: h.deps.Settings()})
}
