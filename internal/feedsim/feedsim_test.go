package feedsim_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fantasylive/internal/adapters/http/api"
	service "github.com/okian/fantasylive/internal/app"
	"github.com/okian/fantasylive/internal/config"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/internal/domain/types"
	"github.com/okian/fantasylive/internal/feedsim"
	"github.com/okian/fantasylive/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func countTypes(msgs []feedsim.Message) map[string]int {
	out := make(map[string]int)
	for _, m := range msgs {
		out[m.Type]++
	}
	return out
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		cfg := feedsim.Config{Games: 2, PlaysPerGame: 40, Seed: 7}

		Convey("It produces a full game flow for every game", func() {
			feed := feedsim.NewGenerator(cfg).Generate()
			kinds := countTypes(feed.Messages)

			So(len(feed.Players), ShouldEqual, 2*2*6)
			So(kinds["lineup_change"], ShouldBeGreaterThanOrEqualTo, 24)
			So(kinds["weather"], ShouldBeGreaterThanOrEqualTo, 2)
			So(kinds["stat_update"], ShouldBeGreaterThan, 0)
			So(kinds["game_status"], ShouldBeGreaterThan, 0)
			So(feed.Messages[0].Type, ShouldEqual, "game_status")
			So(feed.Messages[0].Data["status"], ShouldEqual, string(model.GamePregame))

			last := feed.Messages[len(feed.Messages)-1]
			So(last.Data["status"], ShouldEqual, string(model.GameFinal))
		})

		Convey("Equal seeds give the same flow", func() {
			a := feedsim.NewGenerator(cfg).Generate()
			b := feedsim.NewGenerator(cfg).Generate()
			So(len(a.Messages), ShouldEqual, len(b.Messages))
			So(countTypes(a.Messages), ShouldResemble, countTypes(b.Messages))
		})

		Convey("Expected totals cover every rostered player", func() {
			feed := feedsim.NewGenerator(cfg).Generate()
			exp := feed.Expected()
			So(len(exp), ShouldEqual, len(feed.Players))
			var total float64
			for _, v := range exp {
				total += v
			}
			So(total, ShouldNotEqual, 0)
		})
	})

	Convey("Given a duplicate rate", t, func() {
		Convey("Zero never resends", func() {
			feed := feedsim.NewGenerator(feedsim.Config{Games: 1, PlaysPerGame: 30, Seed: 1}).Generate()
			So(feed.Duplicates, ShouldEqual, 0)
		})

		Convey("A certain rate resends every message", func() {
			feed := feedsim.NewGenerator(feedsim.Config{Games: 1, PlaysPerGame: 30, Seed: 1, DuplicateRate: 1}).Generate()
			So(feed.Duplicates*2, ShouldEqual, len(feed.Messages))
			So(feed.Messages[0].Data["id"], ShouldEqual, feed.Messages[1].Data["id"])
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given expected totals", t, func() {
		exp := map[string]float64{"a": 10, "b": 5, "c": 1}
		players := []types.PlayerUpdate{
			{Player: &model.PlayerState{ID: "a", FantasyPoints: 10.01}},
			{Player: &model.PlayerState{ID: "b", FantasyPoints: 7}},
			{Player: &model.PlayerState{ID: "z", FantasyPoints: 3}},
		}

		Convey("It reports differing and missing players only", func() {
			out := feedsim.Verify(exp, players)
			So(out, ShouldHaveLength, 2)
			So(out[0].PlayerID, ShouldEqual, "b")
			So(out[0].Actual, ShouldEqual, 7)
			So(out[1].PlayerID, ShouldEqual, "c")
			So(out[1].Missing, ShouldBeTrue)
		})
	})
}

func newEngineServer(ctx context.Context) (*service.Engine, *httptest.Server) {
	cfg := config.New()
	cfg.UpdateHz = 100
	cfg.WorkerCount = 4
	cfg.MaintenanceSchedule = "@every 1h"
	e := service.New(cfg, service.WithLogger(logger.Nop()))
	So(e.Start(ctx), ShouldBeNil)

	mux := http.NewServeMux()
	api.NewServer(e).Register(ctx, mux)
	return e, httptest.NewServer(mux)
}

func TestRun(t *testing.T) {
	Convey("Given a running engine", t, func() {
		ctx := context.Background()
		e, srv := newEngineServer(ctx)
		defer srv.Close()
		defer func() { _ = e.Close() }()

		Convey("A simulated feed settles with matching totals", func() {
			rep, err := feedsim.Run(ctx, &feedsim.Config{
				BaseURL:       srv.URL,
				Games:         2,
				PlaysPerGame:  40,
				BatchSize:     10,
				Workers:       3,
				Seed:          42,
				SettleTimeout: 5 * time.Second,
			})
			So(err, ShouldBeNil)
			So(rep.Mismatches, ShouldBeEmpty)
			So(rep.Stats.FailedBatches, ShouldEqual, 0)
			So(rep.Stats.Accepted, ShouldEqual, rep.Stats.MessagesGenerated)
			So(rep.Stats.PlayersChecked, ShouldEqual, 24)
		})

		Convey("A rate limit still delivers every batch", func() {
			rep, err := feedsim.Run(ctx, &feedsim.Config{
				BaseURL:      srv.URL,
				Games:        1,
				PlaysPerGame: 10,
				BatchSize:    20,
				Workers:      2,
				Rate:         50,
				Seed:         3,
			})
			So(err, ShouldBeNil)
			So(rep.Stats.Batches, ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given an engine that is not running", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		Convey("Run fails the health check", func() {
			_, err := feedsim.Run(context.Background(), &feedsim.Config{BaseURL: srv.URL, Timeout: time.Second})
			So(errors.Is(err, feedsim.ErrUnhealthy), ShouldBeTrue)
		})
	})
}
