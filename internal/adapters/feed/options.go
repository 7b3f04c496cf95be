package feed

import (
	"time"

	"github.com/okian/fantasylive/pkg/logger"
)

// Option applies a configuration option to a Listener.
type Option func(*Listener)

// WithBackoff sets the reconnect wait. It doubles after every failed attempt
// up to maxWait and resets after a successful connection.
func WithBackoff(base, maxWait time.Duration) Option {
	return func(l *Listener) {
		if base > 0 {
			l.baseWait = base
		}
		if maxWait >= l.baseWait {
			l.maxWait = maxWait
		}
	}
}

// WithStaleAfter sets how long the feed may stay quiet before it is stale.
func WithStaleAfter(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.staleAfter = d
		}
	}
}

// WithHandshakeTimeout bounds the websocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.dialer.HandshakeTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Listener) {
		if lg != nil {
			l.logger = lg
		}
	}
}
