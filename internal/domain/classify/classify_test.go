package classify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/fantasylive/internal/domain/classify"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func raw(kind, data string) model.RawUpdate {
	return model.RawUpdate{
		Source:    "test-feed",
		Type:      kind,
		Data:      json.RawMessage(data),
		ArrivedAt: time.Unix(1700000000, 0),
	}
}

func newClassifier() *classify.Classifier {
	return classify.New(
		classify.WithIDGenerator(func() string { return "generated" }),
		classify.WithLogger(logger.Nop()),
	)
}

func TestClassifyKinds(t *testing.T) {
	Convey("Given a classifier", t, func() {
		c := newClassifier()
		ctx := context.Background()

		cases := []struct {
			label    string
			data     string
			kind     model.Kind
			priority model.Priority
		}{
			{"touchdown", `{"playerId":"p1","gameId":"g1","playType":"rushing_td","yards":12}`, model.KindScoringPlay, model.PriorityCritical},
			{"Injury-Update", `{"playerId":"p1","status":"questionable","severity":"minor"}`, model.KindInjury, model.PriorityCritical},
			{"stats", `{"playerId":"p1","stats":{"rushingYards":8}}`, model.KindStatDelta, model.PriorityHigh},
			{"depth_chart", `{"playerId":"p1","position":"rb"}`, model.KindLineupChange, model.PriorityHigh},
			{"game_update", `{"gameId":"g1","status":"live","quarter":2}`, model.KindGameStatus, model.PriorityMedium},
			{"WEATHER", `{"gameId":"g1","windMph":20,"precipitation":"Rain"}`, model.KindWeather, model.PriorityMedium},
			{"odds_move", `{"line":-3.5}`, model.KindGeneric, model.PriorityLow},
		}

		for _, tc := range cases {
			Convey("When classifying "+tc.label, func() {
				u, err := c.Classify(ctx, raw(tc.label, tc.data))

				Convey("Then kind and priority follow the fixed table", func() {
					So(err, ShouldBeNil)
					So(u.Kind, ShouldEqual, tc.kind)
					So(u.Priority, ShouldEqual, tc.priority)
					So(u.ID, ShouldEqual, "generated")
					So(u.Source, ShouldEqual, "test-feed")
					So(u.ReceivedAt, ShouldEqual, time.Unix(1700000000, 0))
					So(u.Processed, ShouldBeFalse)
				})
			})
		}
	})
}

func TestClassifyPayloads(t *testing.T) {
	Convey("Given a classifier", t, func() {
		c := newClassifier()
		ctx := context.Background()

		Convey("When an update carries its own id", func() {
			u, err := c.Classify(ctx, raw("stat_delta", `{"id":"feed-42","playerId":"p1","gameId":"g1","stats":{"receptions":1}}`))

			Convey("Then that id is kept so redelivery dedupes", func() {
				So(err, ShouldBeNil)
				So(u.ID, ShouldEqual, "feed-42")
				So(u.PlayerID, ShouldEqual, "p1")
				So(u.GameID, ShouldEqual, "g1")
			})
		})

		Convey("When an injury uses an alias status", func() {
			u, err := c.Classify(ctx, raw("player_status", `{"playerId":"p9","status":"IR","severity":"severe"}`))

			Convey("Then the payload is normalised", func() {
				So(err, ShouldBeNil)
				p := u.Payload.(model.InjuryPayload)
				So(p.Status, ShouldEqual, model.InjuryOut)
				So(p.Severity, ShouldEqual, model.SeveritySevere)
			})
		})

		Convey("When a lineup change omits active", func() {
			u, err := c.Classify(ctx, raw("lineup_change", `{"playerId":"p3","position":"wr"}`))

			Convey("Then the player defaults to active", func() {
				So(err, ShouldBeNil)
				p := u.Payload.(model.LineupChangePayload)
				So(p.Active, ShouldBeTrue)
				So(p.Position, ShouldEqual, model.PosWR)
			})
		})

		Convey("When a lineup change deactivates a player", func() {
			u, err := c.Classify(ctx, raw("lineup_change", `{"playerId":"p3","active":false}`))

			So(err, ShouldBeNil)
			So(u.Payload.(model.LineupChangePayload).Active, ShouldBeFalse)
		})

		Convey("When a generic message names a player with sentiment", func() {
			u, err := c.Classify(ctx, raw("news", `{"playerId":"p5","sentiment":0.4}`))

			So(err, ShouldBeNil)
			p := u.Payload.(model.GenericPayload)
			So(u.PlayerID, ShouldEqual, "p5")
			So(*p.Sentiment, ShouldEqual, 0.4)
		})
	})
}

func TestClassifyRejects(t *testing.T) {
	Convey("Given a classifier", t, func() {
		c := newClassifier()
		ctx := context.Background()

		bad := map[string]model.RawUpdate{
			"missing type":         raw("", `{"playerId":"p1"}`),
			"non-object data":      raw("stats", `[1,2,3]`),
			"empty data":           raw("stats", ``),
			"broken json":          raw("stats", `{"playerId":`),
			"player-scoped no id":  raw("injury", `{"status":"out"}`),
			"game-scoped no id":    raw("weather", `{"windMph":3}`),
			"unknown play type":    raw("scoring_play", `{"playerId":"p1","gameId":"g1","playType":"field_hockey"}`),
			"unknown injury":       raw("injury", `{"playerId":"p1","status":"sleepy"}`),
			"unknown game status":  raw("game_status", `{"gameId":"g1","status":"overtime-ish"}`),
			"empty stat delta":     raw("stat_delta", `{"playerId":"p1"}`),
			"wrong field type":     raw("stat_delta", `{"playerId":"p1","stats":{"rushingYards":"many"}}`),
			"negative scoring yds": raw("scoring_play", `{"playerId":"p1","gameId":"g1","playType":"rushing_td","yards":-4}`),
			"huge scoring yds":     raw("scoring_play", `{"playerId":"p1","gameId":"g1","playType":"rushing_td","yards":500}`),
			"huge stat value":      raw("stat_delta", `{"playerId":"p1","stats":{"passingYards":1.7e308}}`),
			"huge negative stat":   raw("stat_delta", `{"playerId":"p1","stats":{"rushingYards":-2e5}}`),
			"negative plays":       raw("stat_delta", `{"playerId":"p1","plays":-1}`),
			"huge longest play":    raw("stat_delta", `{"playerId":"p1","plays":1,"longestPlay":9999}`),
			"huge season average":  raw("stat_delta", `{"playerId":"p1","plays":1,"seasonAverage":1e300}`),
			"huge game total":      raw("lineup_change", `{"playerId":"p1","recentGameTotals":[12,1e9]}`),
		}

		for name, r := range bad {
			Convey("When classifying "+name, func() {
				before := c.Stats()
				u, err := c.Classify(ctx, r)

				Convey("Then it is rejected and counted, never panicking", func() {
					So(errors.Is(err, classify.ErrMalformedUpdate), ShouldBeTrue)
					So(u.ID, ShouldBeEmpty)
					after := c.Stats()
					So(after.Received-before.Received, ShouldEqual, 1)
					So(after.Malformed-before.Malformed, ShouldEqual, 1)
					So(after.Classified, ShouldEqual, before.Classified)
				})
			})
		}
	})
}

func TestDecodeRaw(t *testing.T) {
	Convey("Given inbound wire messages", t, func() {
		arrived := time.Unix(1700000100, 0)

		Convey("When a single object is posted", func() {
			out, err := classify.DecodeRaw([]byte(`{"sourceName":"espn","type":"stats","data":{"playerId":"p1"},"timestamp":"2024-09-08T17:00:00Z"}`), arrived)

			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 1)
			So(out[0].Source, ShouldEqual, "espn")
			So(out[0].Timestamp.Year(), ShouldEqual, 2024)
			So(out[0].ArrivedAt, ShouldEqual, arrived)
		})

		Convey("When an array with epoch millisecond timestamps is posted", func() {
			out, err := classify.DecodeRaw([]byte(`[{"type":"a","data":{},"timestamp":1700000000000},{"type":"b","data":{}}]`), arrived)

			So(err, ShouldBeNil)
			So(len(out), ShouldEqual, 2)
			So(out[0].Timestamp.Equal(time.UnixMilli(1700000000000)), ShouldBeTrue)
			So(out[1].Timestamp.IsZero(), ShouldBeTrue)
		})

		Convey("When the body is not JSON", func() {
			_, err := classify.DecodeRaw([]byte(`nope`), arrived)
			So(errors.Is(err, classify.ErrMalformedUpdate), ShouldBeTrue)

			_, err = classify.DecodeRaw(nil, arrived)
			So(errors.Is(err, classify.ErrMalformedUpdate), ShouldBeTrue)
		})
	})
}

func TestReject(t *testing.T) {
	Convey("Given a classifier", t, func() {
		c := newClassifier()

		Convey("When an undecodable message is rejected", func() {
			c.Reject(context.Background(), classify.ErrMalformedUpdate)

			Convey("Then it counts as received and malformed", func() {
				st := c.Stats()
				So(st.Received, ShouldEqual, 1)
				So(st.Malformed, ShouldEqual, 1)
				So(st.Classified, ShouldEqual, 0)
			})
		})
	})
}
