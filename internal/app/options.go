package service

import (
	"time"

	"github.com/okian/fantasylive/internal/adapters/feed"
	"github.com/okian/fantasylive/internal/adapters/repository"
	"github.com/okian/fantasylive/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used for projections and alerts.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStore replaces the in-memory state store.
func WithStore(s repository.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// WithFeedOptions adds options to every feed listener.
func WithFeedOptions(opts ...feed.Option) Option {
	return func(e *Engine) {
		e.feedOpts = append(e.feedOpts, opts...)
	}
}
