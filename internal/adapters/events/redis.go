package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/okian/fantasylive/pkg/logger"
	"github.com/okian/fantasylive/pkg/metrics"
)

const (
	defaultStreamMaxLen   = 10000
	breakerTripFailures   = 5
	breakerOpenTimeout    = 10 * time.Second
	defaultWriteTimeout   = 2 * time.Second
	redisSinkMetricsLabel = "redis"
)

// XAdder is the slice of the Redis client the sink uses.
type XAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends events to a Redis stream behind a circuit breaker.
type RedisSink struct {
	client       XAdder
	stream       string
	maxLen       int64
	writeTimeout time.Duration
	cb           *gobreaker.CircuitBreaker
	logger       logger.Logger
}

// SinkOption configures a RedisSink.
type SinkOption func(*RedisSink)

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(n int64) SinkOption {
	return func(s *RedisSink) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithWriteTimeout bounds each XADD.
func WithWriteTimeout(d time.Duration) SinkOption {
	return func(s *RedisSink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithSinkLogger sets the logger.
func WithSinkLogger(l logger.Logger) SinkOption {
	return func(s *RedisSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRedisSink creates a sink writing to stream.
func NewRedisSink(client XAdder, stream string, opts ...SinkOption) *RedisSink {
	s := &RedisSink{
		client:       client,
		stream:       stream,
		maxLen:       defaultStreamMaxLen,
		writeTimeout: defaultWriteTimeout,
		logger:       logger.Named("redis-sink"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-sink",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return s
}

// Write appends one event to the stream.
func (s *RedisSink) Write(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	values := map[string]any{
		"id":        ev.ID,
		"type":      string(ev.Type),
		"player_id": ev.PlayerID,
		"game_id":   ev.GameID,
		"data":      string(data),
		"at":        ev.At.UTC().Format(time.RFC3339Nano),
	}

	_, err = s.cb.Execute(func() (interface{}, error) {
		wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
		return s.client.XAdd(wctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: true,
			Values: values,
		}).Result()
	})
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Run writes events until the channel closes or ctx ends. Failed writes are
// logged and counted; the event is dropped.
func (s *RedisSink) Run(ctx context.Context, in <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if err := s.Write(ctx, ev); err != nil {
				metrics.RecordEventDropped(redisSinkMetricsLabel)
				metrics.RecordErrorByComponent("events", "redis_write")
				s.logger.Debug(ctx, "event dropped",
					logger.String("event_type", string(ev.Type)),
					logger.Error(err),
				)
			}
		}
	}
}

// State reports the breaker state.
func (s *RedisSink) State() gobreaker.State {
	return s.cb.State()
}
