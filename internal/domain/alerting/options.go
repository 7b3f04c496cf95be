package alerting

import (
	"time"

	"github.com/okian/fantasylive/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithUrgentTTL sets how long urgent alerts stay active.
func WithUrgentTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.urgentTTL = d
		}
	}
}

// WithTradeTTL sets how long trade signals stay active.
func WithTradeTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tradeTTL = d
		}
	}
}

// WithIDGenerator overrides alert and signal ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
