// Package feed connects to upstream websocket feeds and hands every message
// to the engine's ingest path.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"github.com/okian/fantasylive/internal/domain/types"
	"github.com/okian/fantasylive/pkg/logger"
	"github.com/okian/fantasylive/pkg/metrics"
)

// Default listener configuration constants.
const (
	defaultBaseWait         = 500 * time.Millisecond
	defaultMaxWait          = 30 * time.Second
	defaultStaleAfter       = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	breakerTripFailures     = 5
	breakerOpenTimeout      = 15 * time.Second
	closeWriteTimeout       = time.Second
)

// Sink receives each message body with its arrival time. Sinks must not
// block on processing.
type Sink func(ctx context.Context, body []byte, receivedAt time.Time) error

// Listener keeps one websocket feed connected. It reconnects with doubling
// backoff behind a circuit breaker and tracks staleness.
type Listener struct {
	url        string
	sink       Sink
	dialer     *websocket.Dialer
	cb         *gobreaker.CircuitBreaker
	baseWait   time.Duration
	maxWait    time.Duration
	staleAfter time.Duration
	now        func() time.Time
	logger     logger.Logger

	mu          sync.RWMutex
	conn        *websocket.Conn
	connected   bool
	running     bool
	closed      bool
	startedAt   time.Time
	lastMessage time.Time
	reconnects  int64
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewListener creates a listener for url. It does not connect until Start.
func NewListener(url string, sink Sink, opts ...Option) *Listener {
	l := &Listener{
		url:        url,
		sink:       sink,
		dialer:     &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		baseWait:   defaultBaseWait,
		maxWait:    defaultMaxWait,
		staleAfter: defaultStaleAfter,
		now:        time.Now,
		logger:     logger.Named("feed"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "feed:" + url,
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return l
}

// URL returns the feed address.
func (l *Listener) URL() string { return l.url }

// Start connects in the background. Starting a running listener is a no-op.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true
	l.startedAt = l.now()
	go l.run(runCtx, l.done)
	return nil
}

// Stop disconnects and waits for the background loop. The listener can be
// started again.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	l.cancel()
	if l.conn != nil {
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout))
		_ = l.conn.Close()
	}
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop %s: %w", l.url, ctx.Err())
	}
}

// Close stops the listener for good.
func (l *Listener) Close(ctx context.Context) error {
	err := l.Stop(ctx)
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return err
}

// Check returns ErrStale when the feed has been quiet too long.
func (l *Listener) Check() error {
	if l.Status().Stale {
		return fmt.Errorf("%s: %w", l.url, ErrStale)
	}
	return nil
}

// Status reports connection and staleness.
func (l *Listener) Status() types.FeedStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	since := l.lastMessage
	if since.IsZero() {
		since = l.startedAt
	}
	stale := l.running && !since.IsZero() && l.now().Sub(since) > l.staleAfter
	metrics.UpdateFeedStatus(l.url, l.connected, stale)
	return types.FeedStatus{
		URL:           l.url,
		Connected:     l.connected,
		Stale:         stale,
		LastMessageAt: l.lastMessage,
		Reconnects:    l.reconnects,
	}
}

func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	wait := l.baseWait
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := l.dial(ctx)
		if err == nil {
			wait = l.baseWait
			err = l.read(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}

		l.mu.Lock()
		l.reconnects++
		l.mu.Unlock()
		metrics.RecordFeedReconnect(l.url)
		l.logger.Warn(ctx, "feed disconnected",
			logger.String("url", l.url),
			logger.Duration("retry_in", wait),
			logger.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, l.maxWait)
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	res, err := l.cb.Execute(func() (interface{}, error) {
		conn, resp, err := l.dialer.DialContext(ctx, l.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return conn, err
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", l.url, err)
	}
	conn := res.(*websocket.Conn)

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		_ = conn.Close()
		return nil, ErrClosed
	}
	l.conn = conn
	l.connected = true
	l.mu.Unlock()

	l.logger.Info(ctx, "feed connected", logger.String("url", l.url))
	return conn, nil
}

// read pumps messages into the sink until the connection fails.
func (l *Listener) read(ctx context.Context, conn *websocket.Conn) error {
	defer func() {
		l.mu.Lock()
		l.conn = nil
		l.connected = false
		l.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("%w: %w", ErrClosed, err)
			}
			return err
		}
		at := l.now()

		l.mu.Lock()
		l.lastMessage = at
		l.mu.Unlock()
		metrics.RecordFeedMessage(l.url)

		if err := l.sink(ctx, data, at); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Debug(ctx, "feed message rejected",
				logger.String("url", l.url),
				logger.Error(err),
			)
		}
	}
}
