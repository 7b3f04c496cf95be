package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fantasylive/internal/adapters/http/api"
	"github.com/okian/fantasylive/internal/adapters/repository"
	service "github.com/okian/fantasylive/internal/app"
	"github.com/okian/fantasylive/internal/domain/alerting"
	"github.com/okian/fantasylive/internal/domain/classify"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/internal/domain/types"
)

type fakeEngine struct {
	mu sync.Mutex

	started bool
	paused  bool

	ingestAccepted int
	ingestErr      error
	bodies         [][]byte

	games   []*model.GameState
	players map[string]types.PlayerUpdate

	lineups map[string]model.Lineup
	advice  model.LineupOptimization

	alerts  []model.Alert
	acked   map[string]bool
	signals []model.TradeSignal

	settings service.Settings
	patchErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		started: true,
		players: map[string]types.PlayerUpdate{},
		lineups: map[string]model.Lineup{},
		acked:   map[string]bool{},
		settings: service.Settings{
			UpdateHz:      10,
			WorkerCount:   4,
			CacheStrategy: "balanced",
		},
	}
}

func (f *fakeEngine) IngestBody(_ context.Context, body []byte, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	return f.ingestAccepted, f.ingestErr
}

func (f *fakeEngine) Games(context.Context) []*model.GameState { return f.games }

func (f *fakeEngine) ActiveGames(context.Context) []*model.GameState {
	var out []*model.GameState
	for _, g := range f.games {
		if g.Status.Active() {
			out = append(out, g)
		}
	}
	return out
}

func (f *fakeEngine) AllPlayerUpdates(context.Context) []types.PlayerUpdate {
	out := make([]types.PlayerUpdate, 0, len(f.players))
	for _, id := range []string{"p1", "p2", "p3"} {
		if pu, ok := f.players[id]; ok {
			out = append(out, pu)
		}
	}
	return out
}

func (f *fakeEngine) PlayerUpdate(_ context.Context, id string) (types.PlayerUpdate, error) {
	pu, ok := f.players[id]
	if !ok {
		return types.PlayerUpdate{}, fmt.Errorf("player %s: %w", id, repository.ErrNotFound)
	}
	return pu, nil
}

func (f *fakeEngine) TrackLineup(_ context.Context, l model.Lineup) (model.LineupOptimization, bool, error) {
	if len(l.Starters) == 0 {
		return model.LineupOptimization{}, false, service.ErrInvalidLineup
	}
	f.lineups[l.ID] = l
	return f.advice, len(f.advice.Recommendations) > 0, nil
}

func (f *fakeEngine) UntrackLineup(id string) error {
	if _, ok := f.lineups[id]; !ok {
		return alerting.ErrLineupNotFound
	}
	delete(f.lineups, id)
	return nil
}

func (f *fakeEngine) Lineup(id string) (*model.Lineup, error) {
	l, ok := f.lineups[id]
	if !ok {
		return nil, alerting.ErrLineupNotFound
	}
	return &l, nil
}

func (f *fakeEngine) LineupOptimization(id string) (model.LineupOptimization, error) {
	if _, ok := f.lineups[id]; !ok {
		return model.LineupOptimization{}, alerting.ErrLineupNotFound
	}
	return f.advice, nil
}

func (f *fakeEngine) ActiveAlerts() []model.Alert { return f.alerts }

func (f *fakeEngine) Acknowledge(_ context.Context, playerID string) bool {
	for _, a := range f.alerts {
		if a.PlayerID == playerID {
			f.acked[playerID] = true
			return true
		}
	}
	return false
}

func (f *fakeEngine) ActiveTradeAlerts() []model.TradeSignal {
	if len(f.signals) == 0 {
		return nil
	}
	return f.signals[:1]
}

func (f *fakeEngine) AllTradeAlerts() []model.TradeSignal { return f.signals }

func (f *fakeEngine) Pause(context.Context) error {
	if !f.started {
		return service.ErrNotStarted
	}
	f.paused = true
	return nil
}

func (f *fakeEngine) Resume(context.Context) error {
	if !f.started {
		return service.ErrNotStarted
	}
	f.paused = false
	return nil
}

func (f *fakeEngine) Started() bool { return f.started }

func (f *fakeEngine) Paused() bool { return f.paused }

func (f *fakeEngine) Settings() service.Settings { return f.settings }

func (f *fakeEngine) UpdateConfig(_ context.Context, p service.ConfigPatch) (service.Settings, error) {
	if f.patchErr != nil {
		return f.settings, f.patchErr
	}
	if p.UpdateHz != nil {
		f.settings.UpdateHz = *p.UpdateHz
	}
	if p.WorkerCount != nil {
		f.settings.WorkerCount = *p.WorkerCount
	}
	return f.settings, nil
}

func (f *fakeEngine) PerformanceMetrics(context.Context) types.PerformanceMetrics {
	return types.PerformanceMetrics{
		Processed:  42,
		QueueDepth: 3,
		Paused:     f.paused,
		StaleFeeds: 0,
	}
}

func newMux(f *fakeEngine) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(f).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		f := newFakeEngine()
		mux := newMux(f)

		Convey("Health answers ok while started", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]any
			decode(w, &body)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("Health answers 503 when stopped", func() {
			f.started = false
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Metrics are served in Prometheus text format", func() {
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "# HELP")
		})

		Convey("Stats return the performance snapshot", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var pm types.PerformanceMetrics
			decode(w, &pm)
			So(pm.Processed, ShouldEqual, int64(42))
			So(pm.QueueDepth, ShouldEqual, 3)
		})

		Convey("Wrong methods are rejected by the mux", func() {
			w := do(mux, http.MethodGet, "/updates", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestUpdatesHandler(t *testing.T) {
	Convey("Given the updates endpoint", t, func() {
		f := newFakeEngine()
		mux := newMux(f)
		msg := `{"type":"stat_update","data":{"playerId":"p1","stats":{"rushingYards":10}},"timestamp":"2026-09-13T17:00:00Z"}`

		Convey("An accepted message answers 202", func() {
			f.ingestAccepted = 1
			w := do(mux, http.MethodPost, "/updates", msg)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			var resp map[string]any
			decode(w, &resp)
			So(resp["status"], ShouldEqual, "accepted")
			So(resp["accepted"], ShouldEqual, 1.0)
			So(f.bodies, ShouldHaveLength, 1)
			So(string(f.bodies[0]), ShouldEqual, msg)
		})

		Convey("A partly rejected batch answers 202 with the rejections", func() {
			f.ingestAccepted = 1
			f.ingestErr = errors.Join(fmt.Errorf("%w: missing type", classify.ErrMalformedUpdate))
			w := do(mux, http.MethodPost, "/updates", "["+msg+`,{"data":{}}]`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			var resp map[string]any
			decode(w, &resp)
			So(resp["status"], ShouldEqual, "partial")
			So(resp["rejected"], ShouldEqual, 1.0)
		})

		Convey("A malformed body answers 400", func() {
			f.ingestErr = fmt.Errorf("%w: empty body", classify.ErrMalformedUpdate)
			w := do(mux, http.MethodPost, "/updates", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A full queue answers 429", func() {
			f.ingestErr = errors.Join(fmt.Errorf("enqueue u1: %w", service.ErrQueueFull))
			w := do(mux, http.MethodPost, "/updates", msg)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			var resp map[string]string
			decode(w, &resp)
			So(resp["code"], ShouldEqual, "backpressure")
		})

		Convey("A paused engine answers 503", func() {
			f.ingestErr = service.ErrPaused
			w := do(mux, http.MethodPost, "/updates", msg)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestQueryHandler(t *testing.T) {
	Convey("Given tracked games and players", t, func() {
		f := newFakeEngine()
		f.games = []*model.GameState{
			{ID: "g1", Status: model.GameLive},
			{ID: "g2", Status: model.GameFinal},
		}
		f.players["p1"] = types.PlayerUpdate{Player: &model.PlayerState{ID: "p1", Name: "A"}}
		f.players["p2"] = types.PlayerUpdate{Player: &model.PlayerState{ID: "p2", Name: "B"}}
		mux := newMux(f)

		Convey("All games are listed", func() {
			w := do(mux, http.MethodGet, "/games", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var games []model.GameState
			decode(w, &games)
			So(games, ShouldHaveLength, 2)
		})

		Convey("Active games are filtered", func() {
			w := do(mux, http.MethodGet, "/games?active=true", "")
			var games []model.GameState
			decode(w, &games)
			So(games, ShouldHaveLength, 1)
			So(games[0].ID, ShouldEqual, "g1")
		})

		Convey("A bad active flag answers 400", func() {
			w := do(mux, http.MethodGet, "/games?active=maybe", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Players honour the limit", func() {
			w := do(mux, http.MethodGet, "/players?limit=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var players []types.PlayerUpdate
			decode(w, &players)
			So(players, ShouldHaveLength, 1)
			So(players[0].Player.ID, ShouldEqual, "p1")
		})

		Convey("An invalid limit answers 400", func() {
			w := do(mux, http.MethodGet, "/players?limit=0", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("One player is returned by id", func() {
			w := do(mux, http.MethodGet, "/players/p2", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var pu types.PlayerUpdate
			decode(w, &pu)
			So(pu.Player.Name, ShouldEqual, "B")
		})

		Convey("An unknown player answers 404", func() {
			w := do(mux, http.MethodGet, "/players/nobody", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A player that cannot be encoded answers 500 with an error body", func() {
			f.players["p3"] = types.PlayerUpdate{Player: &model.PlayerState{ID: "p3", FantasyPoints: math.NaN()}}
			w := do(mux, http.MethodGet, "/players/p3", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			var resp struct {
				Code string `json:"code"`
			}
			decode(w, &resp)
			So(resp.Code, ShouldEqual, "internal_error")

			w = do(mux, http.MethodGet, "/players", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestLineupHandler(t *testing.T) {
	Convey("Given the lineup endpoints", t, func() {
		f := newFakeEngine()
		mux := newMux(f)
		body := `{"starters":[{"slot":"RB","playerId":"p1"}],"bench":["p2"]}`

		Convey("PUT tracks the lineup under the path id", func() {
			w := do(mux, http.MethodPut, "/lineups/l1", body)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.lineups, ShouldContainKey, "l1")

			Convey("and GET returns it with its advice", func() {
				w := do(mux, http.MethodGet, "/lineups/l1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Lineup model.Lineup `json:"lineup"`
					Needed bool         `json:"optimizationNeeded"`
				}
				decode(w, &resp)
				So(resp.Lineup.ID, ShouldEqual, "l1")
				So(resp.Lineup.Bench, ShouldResemble, []string{"p2"})
				So(resp.Needed, ShouldBeFalse)
			})

			Convey("and DELETE untracks it", func() {
				w := do(mux, http.MethodDelete, "/lineups/l1", "")
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(f.lineups, ShouldNotContainKey, "l1")
			})
		})

		Convey("PUT reports advice when a starter is alerted", func() {
			f.advice = model.LineupOptimization{
				LineupID:        "l1",
				Recommendations: []model.SlotRecommendation{{Slot: model.PosRB, PlayerID: "p1"}},
			}
			w := do(mux, http.MethodPut, "/lineups/l1", body)
			var resp map[string]any
			decode(w, &resp)
			So(resp["optimizationNeeded"], ShouldBeTrue)
		})

		Convey("A mismatched body id answers 400", func() {
			w := do(mux, http.MethodPut, "/lineups/l1", `{"id":"other","starters":[{"slot":"RB","playerId":"p1"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A lineup without starters answers 400", func() {
			w := do(mux, http.MethodPut, "/lineups/l1", `{"bench":["p2"]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An unknown lineup answers 404", func() {
			So(do(mux, http.MethodGet, "/lineups/none", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodDelete, "/lineups/none", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestAlertHandler(t *testing.T) {
	Convey("Given alerts and trade signals", t, func() {
		f := newFakeEngine()
		f.alerts = []model.Alert{{ID: "a1", PlayerID: "p1", Type: model.AlertInjury, Critical: true}}
		f.signals = []model.TradeSignal{{ID: "t1", PlayerID: "p1"}, {ID: "t2", PlayerID: "p2"}}
		mux := newMux(f)

		Convey("Active alerts are listed", func() {
			w := do(mux, http.MethodGet, "/alerts", "")
			var alerts []model.Alert
			decode(w, &alerts)
			So(alerts, ShouldHaveLength, 1)
			So(alerts[0].Critical, ShouldBeTrue)
		})

		Convey("No alerts encode as an empty array", func() {
			f.alerts = nil
			w := do(mux, http.MethodGet, "/alerts", "")
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("Acknowledging an alerted player succeeds", func() {
			w := do(mux, http.MethodPost, "/alerts/p1/ack", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.acked["p1"], ShouldBeTrue)
		})

		Convey("Acknowledging a quiet player answers 404", func() {
			w := do(mux, http.MethodPost, "/alerts/p9/ack", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Trade alerts default to active ones", func() {
			var signals []model.TradeSignal
			decode(do(mux, http.MethodGet, "/trade-alerts", ""), &signals)
			So(signals, ShouldHaveLength, 1)

			decode(do(mux, http.MethodGet, "/trade-alerts?all=true", ""), &signals)
			So(signals, ShouldHaveLength, 2)
		})
	})
}

func TestControlHandler(t *testing.T) {
	Convey("Given the control endpoints", t, func() {
		f := newFakeEngine()
		mux := newMux(f)

		Convey("Pause and resume toggle the engine", func() {
			w := do(mux, http.MethodPost, "/control/pause", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.paused, ShouldBeTrue)

			w = do(mux, http.MethodPost, "/control/resume", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.paused, ShouldBeFalse)
		})

		Convey("Pausing a stopped engine answers 503", func() {
			f.started = false
			So(do(mux, http.MethodPost, "/control/pause", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("A config patch returns the new settings", func() {
			w := do(mux, http.MethodPatch, "/control/config", `{"updateHz":20,"workerCount":8}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var resp struct {
				Settings service.Settings `json:"settings"`
			}
			decode(w, &resp)
			So(resp.Settings.UpdateHz, ShouldEqual, 20)
			So(resp.Settings.WorkerCount, ShouldEqual, 8)
		})

		Convey("Unknown fields answer 400", func() {
			w := do(mux, http.MethodPatch, "/control/config", `{"updateRate":20}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An invalid patch answers 400", func() {
			f.patchErr = fmt.Errorf("%w: updateHz must be in 1..1000, got 0", service.ErrInvalidPatch)
			w := do(mux, http.MethodPatch, "/control/config", `{"updateHz":0}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("The current config is readable", func() {
			w := do(mux, http.MethodGet, "/control/config", "")
			var resp struct {
				Settings service.Settings `json:"settings"`
			}
			decode(w, &resp)
			So(resp.Settings.CacheStrategy, ShouldEqual, "balanced")
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Wrapped API errors match both kind and cause", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)
		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		So(api.Wrap("api.op", nil), ShouldBeNil)
		So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
	})
}
