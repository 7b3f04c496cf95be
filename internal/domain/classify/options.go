package classify

import (
	"time"

	"github.com/okian/fantasylive/pkg/logger"
)

// Option configures a Classifier.
type Option func(*Classifier)

// WithIDGenerator overrides the id assigned to updates that carry none.
func WithIDGenerator(fn func() string) Option {
	return func(c *Classifier) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithClock sets the clock used when a raw update has no arrival time.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}
