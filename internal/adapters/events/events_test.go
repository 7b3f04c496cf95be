package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fantasylive/internal/adapters/events"
)

func TestBus(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bus with two subscribers", t, func() {
		bus := events.NewBus()
		a, cancelA := bus.Subscribe(8)
		b, cancelB := bus.Subscribe(8)
		defer cancelB()

		Convey("When events are published", func() {
			for _, typ := range []events.Type{events.TypeScoringPlay, events.TypePlayerUpdate, events.TypeTradeAlert} {
				So(bus.Publish(ctx, events.Event{Type: typ}), ShouldBeNil)
			}

			Convey("Then every subscriber sees them in order", func() {
				for _, ch := range []<-chan events.Event{a, b} {
					So((<-ch).Type, ShouldEqual, events.TypeScoringPlay)
					So((<-ch).Type, ShouldEqual, events.TypePlayerUpdate)
					So((<-ch).Type, ShouldEqual, events.TypeTradeAlert)
				}
			})
		})

		Convey("When one subscriber cancels", func() {
			cancelA()
			cancelA()

			Convey("Then its channel closes and the other keeps receiving", func() {
				_, open := <-a
				So(open, ShouldBeFalse)
				So(bus.Subscribers(), ShouldEqual, 1)
				So(bus.Publish(ctx, events.Event{Type: events.TypeUrgentAlert}), ShouldBeNil)
				So((<-b).Type, ShouldEqual, events.TypeUrgentAlert)
			})
		})

		Convey("When the bus is closed", func() {
			bus.Close()

			Convey("Then channels close and publishing fails", func() {
				_, open := <-a
				So(open, ShouldBeFalse)
				So(errors.Is(bus.Publish(ctx, events.Event{}), events.ErrBusClosed), ShouldBeTrue)

				late, _ := bus.Subscribe(1)
				_, open = <-late
				So(open, ShouldBeFalse)
			})
		})
	})

	Convey("Given a subscriber that never reads", t, func() {
		bus := events.NewBus()
		stuck, cancelStuck := bus.Subscribe(1)
		defer cancelStuck()
		live, cancelLive := bus.Subscribe(16)
		defer cancelLive()

		Convey("When more events are published than its buffer holds", func() {
			start := time.Now()
			for range 10 {
				So(bus.Publish(ctx, events.Event{Type: events.TypePlayerUpdate}), ShouldBeNil)
			}
			elapsed := time.Since(start)

			Convey("Then publishing does not wait on it", func() {
				So(elapsed, ShouldBeLessThan, 100*time.Millisecond)
				So(bus.Dropped(), ShouldEqual, 9)
				So(len(stuck), ShouldEqual, 1)
			})

			Convey("Then other subscribers still get every event", func() {
				So(len(live), ShouldEqual, 10)
			})
		})

		Convey("When the context has already ended", func() {
			cctx, stop := context.WithCancel(ctx)
			stop()

			Convey("Then nothing is delivered", func() {
				So(errors.Is(bus.Publish(cctx, events.Event{}), context.Canceled), ShouldBeTrue)
				So(len(stuck), ShouldEqual, 0)
			})
		})
	})
}

type fakeRedis struct {
	mu    sync.Mutex
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeRedis) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, a)
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	return redis.NewStringResult("1700000000000-0", nil)
}

func (f *fakeRedis) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRedisSink(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)

	Convey("Given a sink over a working Redis", t, func() {
		fake := &fakeRedis{}
		sink := events.NewRedisSink(fake, "fantasylive:events", events.WithMaxLen(500))

		Convey("When an event is written", func() {
			err := sink.Write(ctx, events.Event{
				ID: "e1", Type: events.TypeTradeAlert, PlayerID: "p1",
				Data: map[string]float64{"valueChange": 4.5}, At: at,
			})

			Convey("Then it lands on the stream with its fields", func() {
				So(err, ShouldBeNil)
				So(fake.calls, ShouldHaveLength, 1)
				args := fake.calls[0]
				So(args.Stream, ShouldEqual, "fantasylive:events")
				So(args.MaxLen, ShouldEqual, 500)
				So(args.Approx, ShouldBeTrue)

				values := args.Values.(map[string]any)
				So(values["type"], ShouldEqual, "tradeAlert")
				So(values["player_id"], ShouldEqual, "p1")
				So(values["at"], ShouldEqual, "2026-10-18T20:00:00Z")

				var data map[string]float64
				So(json.Unmarshal([]byte(values["data"].(string)), &data), ShouldBeNil)
				So(data["valueChange"], ShouldEqual, 4.5)
			})
		})

		Convey("When it runs over a subscription", func() {
			bus := events.NewBus()
			ch, cancel := bus.Subscribe(4)
			done := make(chan struct{})
			go func() {
				sink.Run(ctx, ch)
				close(done)
			}()

			So(bus.Publish(ctx, events.Event{Type: events.TypePlayerUpdate}), ShouldBeNil)
			So(bus.Publish(ctx, events.Event{Type: events.TypeScoringPlay}), ShouldBeNil)
			cancel()
			<-done

			Convey("Then every event is written", func() {
				So(fake.count(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a sink over a failing Redis", t, func() {
		fake := &fakeRedis{err: errors.New("connection refused")}
		sink := events.NewRedisSink(fake, "s")

		Convey("When writes keep failing", func() {
			for range 5 {
				So(sink.Write(ctx, events.Event{Type: events.TypePlayerUpdate}), ShouldNotBeNil)
			}

			Convey("Then the breaker opens and stops calling Redis", func() {
				So(sink.State(), ShouldEqual, gobreaker.StateOpen)
				err := sink.Write(ctx, events.Event{Type: events.TypePlayerUpdate})
				So(errors.Is(err, gobreaker.ErrOpenState), ShouldBeTrue)
				So(fake.count(), ShouldEqual, 5)
			})
		})
	})
}
