package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/internal/domain/types"
)

// QueryDependencies exposes read access to games and players.
type QueryDependencies interface {
	Games(ctx context.Context) []*model.GameState
	ActiveGames(ctx context.Context) []*model.GameState
	AllPlayerUpdates(ctx context.Context) []types.PlayerUpdate
	PlayerUpdate(ctx context.Context, playerID string) (types.PlayerUpdate, error)
}

// QueryHandler handles game and player reads.
type QueryHandler struct {
	deps QueryDependencies
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps QueryDependencies) *QueryHandler {
	return &QueryHandler{deps: deps}
}

// HandleGetGames handles GET /games[?active=true].
func (h *QueryHandler) HandleGetGames(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_games"

	active := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		active = b
	}

	games := h.deps.Games(r.Context())
	if active {
		games = h.deps.ActiveGames(r.Context())
	}
	writeJSON(w, http.StatusOK, games)
}

// HandleGetPlayers handles GET /players[?limit=N].
func (h *QueryHandler) HandleGetPlayers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_players"

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	players := h.deps.AllPlayerUpdates(r.Context())
	if limit > 0 && limit < len(players) {
		players = players[:limit]
	}
	writeJSON(w, http.StatusOK, players)
}

// HandleGetPlayer handles GET /players/{id}.
func (h *QueryHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_player"

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	pu, err := h.deps.PlayerUpdate(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, pu)
}
