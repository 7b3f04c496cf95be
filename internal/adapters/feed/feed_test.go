package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

type collector struct {
	mu     sync.Mutex
	bodies []string
}

func (c *collector) sink(_ context.Context, body []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, string(body))
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.bodies...)
}

// feedServer sends msgs to every connection and keeps it open until the
// client leaves.
func feedServer(t *testing.T, msgs ...string) (*httptest.Server, *int32Counter) {
	t.Helper()
	conns := &int32Counter{}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.inc()
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv, conns
}

type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *int32Counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestListener(t *testing.T) {
	Convey("Given a feed server", t, func() {
		srv, _ := feedServer(t, `{"a":1}`, `{"b":2}`)
		defer srv.Close()

		c := &collector{}
		l := NewListener(wsURL(srv), c.sink, WithBackoff(10*time.Millisecond, 50*time.Millisecond))
		ctx := context.Background()

		Convey("Messages reach the sink in order", func() {
			So(l.Start(ctx), ShouldBeNil)
			defer l.Stop(ctx)

			So(eventually(func() bool { return len(c.snapshot()) == 2 }), ShouldBeTrue)
			So(c.snapshot(), ShouldResemble, []string{`{"a":1}`, `{"b":2}`})

			st := l.Status()
			So(st.Connected, ShouldBeTrue)
			So(st.Stale, ShouldBeFalse)
			So(st.LastMessageAt.IsZero(), ShouldBeFalse)
			So(l.Check(), ShouldBeNil)
		})

		Convey("Starting twice is a no-op and stop disconnects", func() {
			So(l.Start(ctx), ShouldBeNil)
			So(l.Start(ctx), ShouldBeNil)
			So(eventually(func() bool { return l.Status().Connected }), ShouldBeTrue)

			So(l.Stop(ctx), ShouldBeNil)
			So(l.Status().Connected, ShouldBeFalse)
			So(l.Stop(ctx), ShouldBeNil)
		})

		Convey("A closed listener cannot restart", func() {
			So(l.Start(ctx), ShouldBeNil)
			So(l.Close(ctx), ShouldBeNil)
			So(errors.Is(l.Start(ctx), ErrClosed), ShouldBeTrue)
		})
	})
}

func TestListenerReconnects(t *testing.T) {
	Convey("Given a server that drops every connection", t, func() {
		var conns int32Counter
		upgrader := websocket.Upgrader{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			conns.inc()
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{}`))
			_ = conn.Close()
		}))
		defer srv.Close()

		c := &collector{}
		l := NewListener(wsURL(srv), c.sink, WithBackoff(5*time.Millisecond, 20*time.Millisecond))
		ctx := context.Background()
		So(l.Start(ctx), ShouldBeNil)
		defer l.Stop(ctx)

		Convey("The listener keeps reconnecting", func() {
			So(eventually(func() bool { return conns.get() >= 3 }), ShouldBeTrue)
			So(eventually(func() bool { return l.Status().Reconnects >= 2 }), ShouldBeTrue)
		})
	})
}

func TestListenerStale(t *testing.T) {
	Convey("Given a quiet feed and a controllable clock", t, func() {
		srv, _ := feedServer(t)
		defer srv.Close()

		var mu sync.Mutex
		now := time.Date(2024, 9, 8, 13, 0, 0, 0, time.UTC)
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		advance := func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		}

		l := NewListener(wsURL(srv), (&collector{}).sink,
			WithClock(clock),
			WithStaleAfter(30*time.Second),
		)
		ctx := context.Background()
		So(l.Start(ctx), ShouldBeNil)
		defer l.Stop(ctx)

		Convey("It turns stale after the window without disconnecting", func() {
			So(eventually(func() bool { return l.Status().Connected }), ShouldBeTrue)
			So(l.Check(), ShouldBeNil)

			advance(31 * time.Second)
			st := l.Status()
			So(st.Stale, ShouldBeTrue)
			So(st.Connected, ShouldBeTrue)
			So(errors.Is(l.Check(), ErrStale), ShouldBeTrue)
		})
	})
}

func TestManager(t *testing.T) {
	Convey("Given two feeds", t, func() {
		a, _ := feedServer(t, "a")
		defer a.Close()
		b, _ := feedServer(t, "b")
		defer b.Close()

		c := &collector{}
		m := NewManager([]string{wsURL(a), wsURL(b)}, c.sink)
		ctx := context.Background()
		So(m.Start(ctx), ShouldBeNil)

		Convey("Both deliver and report status", func() {
			So(eventually(func() bool { return len(c.snapshot()) == 2 }), ShouldBeTrue)
			So(c.snapshot(), ShouldContain, "a")
			So(c.snapshot(), ShouldContain, "b")
			So(m.Statuses(), ShouldHaveLength, 2)
			So(m.Stop(ctx), ShouldBeNil)
		})
	})
}
