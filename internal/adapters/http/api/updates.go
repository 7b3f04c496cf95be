package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// UpdateDependencies accepts inbound feed messages.
type UpdateDependencies interface {
	// IngestBody decodes one message or an array and enqueues each. It
	// returns the number accepted; failures are joined into the error.
	IngestBody(ctx context.Context, body []byte, arrivedAt time.Time) (int, error)
}

// UpdatesHandler handles update ingestion requests.
type UpdatesHandler struct {
	deps UpdateDependencies
	now  func() time.Time
}

// NewUpdatesHandler creates a new updates handler.
func NewUpdatesHandler(deps UpdateDependencies) *UpdatesHandler {
	return &UpdatesHandler{deps: deps, now: time.Now}
}

type updatesResponse struct {
	Status   string   `json:"status"`
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// HandlePostUpdates handles POST /updates. The body is one inbound message
// or an array of them. A batch where only some messages were accepted
// answers 202 with the rejections listed.
func (h *UpdatesHandler) HandlePostUpdates(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_updates"

	arrivedAt := h.now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	accepted, err := h.deps.IngestBody(r.Context(), body, arrivedAt)
	if err != nil && accepted == 0 {
		writeFailure(w, Wrap(op, err))
		return
	}

	resp := updatesResponse{Status: "accepted", Accepted: accepted}
	if err != nil {
		errs := flatten(err)
		resp.Status = "partial"
		resp.Rejected = len(errs)
		for _, e := range errs {
			resp.Errors = append(resp.Errors, e.Error())
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// flatten splits a joined error into its parts.
func flatten(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
