package scoring

// Features toggles the optional analytics factors. A disabled feature
// contributes a neutral multiplier of 1.0.
type Features struct {
	Weather    bool
	Sentiment  bool
	Predictive bool
}

// Calculator computes projections under a fixed feature configuration.
// It holds no mutable state; swap in a new Calculator to change settings.
type Calculator struct {
	features      Features
	baselineBlend bool
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithFeatures sets the feature toggles.
func WithFeatures(f Features) Option {
	return func(c *Calculator) {
		c.features = f
	}
}

// WithBaselineBlend blends a known season average into early-game projections.
func WithBaselineBlend(enabled bool) Option {
	return func(c *Calculator) {
		c.baselineBlend = enabled
	}
}

// NewCalculator creates a Calculator with every feature enabled and no baseline blend.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{features: Features{Weather: true, Sentiment: true, Predictive: true}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Features returns the active toggles.
func (c *Calculator) Features() Features { return c.features }

// BaselineBlend reports whether blending is enabled.
func (c *Calculator) BaselineBlend() bool { return c.baselineBlend }
