// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers file and env values over the defaults and validates the result.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Cache strategies control how long expired alerts are retained before eviction.
const (
	CacheAggressive = "aggressive"
	CacheBalanced   = "balanced"
	CacheMinimal    = "minimal"
)

const maxDefaultWorkers = 8

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UpdateHz is the scheduler tick frequency.
	UpdateHz int `koanf:"update_hz"`

	// WorkerCount sets the number of projection workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the dispatch queue; 0 means unbounded.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets how many update ids the state store remembers.
	DedupeSize int `koanf:"dedupe_size"`

	// DedupeTTLMS optionally expires remembered ids; 0 keeps them until pushed out.
	DedupeTTLMS int `koanf:"dedupe_ttl_ms"`

	// CacheStrategy is one of aggressive, balanced, minimal.
	CacheStrategy string `koanf:"cache_strategy"`

	// Feature toggles for the optional analytics factors.
	FeatureWeather    bool `koanf:"feature_weather"`
	FeatureSentiment  bool `koanf:"feature_sentiment"`
	FeaturePredictive bool `koanf:"feature_predictive"`

	// BaselineBlend mixes season averages into early-game projections.
	BaselineBlend bool `koanf:"baseline_blend"`

	// MaintenanceSchedule is a cron spec for the eviction sweep.
	MaintenanceSchedule string `koanf:"maintenance_schedule"`

	// FeedURLs lists websocket feeds, comma separated.
	FeedURLs string `koanf:"feed_urls"`

	// FeedStaleAfterMS marks a feed stale when no message arrives in this window.
	FeedStaleAfterMS int `koanf:"feed_stale_after_ms"`

	// ReconnectBaseMS and ReconnectMaxMS bound the listener backoff.
	ReconnectBaseMS int `koanf:"reconnect_base_ms"`
	ReconnectMaxMS  int `koanf:"reconnect_max_ms"`

	// RedisAddr enables the Redis stream sink when set.
	RedisAddr string `koanf:"redis_addr"`

	// RedisStream names the stream events are appended to.
	RedisStream string `koanf:"redis_stream"`

	// EventBuffer is the per-subscriber channel buffer.
	EventBuffer int `koanf:"event_buffer"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		UpdateHz:            20,
		WorkerCount:         min(runtime.NumCPU(), maxDefaultWorkers),
		QueueSize:           100_000,
		DedupeSize:          10_000,
		DedupeTTLMS:         0,
		CacheStrategy:       CacheBalanced,
		FeatureWeather:      true,
		FeatureSentiment:    true,
		FeaturePredictive:   true,
		BaselineBlend:       false,
		MaintenanceSchedule: "@every 30s",
		FeedURLs:            "",
		FeedStaleAfterMS:    30_000,
		ReconnectBaseMS:     500,
		ReconnectMaxMS:      30_000,
		RedisAddr:           "",
		RedisStream:         "fantasylive:events",
		EventBuffer:         256,
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.UpdateHz <= 0 || c.UpdateHz > 1000 {
		return fmt.Errorf("%w: update_hz must be in 1..1000, got %d", ErrInvalidConfig, c.UpdateHz)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue_size must not be negative", ErrInvalidConfig)
	}
	if c.DedupeSize <= 0 {
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	}
	if c.DedupeTTLMS < 0 {
		return fmt.Errorf("%w: dedupe_ttl_ms must not be negative", ErrInvalidConfig)
	}
	if _, err := Retention(c.CacheStrategy); err != nil {
		return err
	}
	if c.ReconnectBaseMS <= 0 || c.ReconnectMaxMS < c.ReconnectBaseMS {
		return fmt.Errorf("%w: reconnect backoff needs 0 < base <= max", ErrInvalidConfig)
	}
	if c.FeedStaleAfterMS <= 0 {
		return fmt.Errorf("%w: feed_stale_after_ms must be positive", ErrInvalidConfig)
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("%w: event_buffer must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Feeds returns the configured feed URLs.
func (c *Config) Feeds() []string {
	var out []string
	for _, u := range strings.Split(c.FeedURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// TickInterval converts UpdateHz into a ticker period.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.UpdateHz)
}

// Retention maps a cache strategy to how long expired alerts are kept.
func Retention(strategy string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case CacheAggressive:
		return 24 * time.Hour, nil
	case CacheBalanced, "":
		return time.Hour, nil
	case CacheMinimal:
		return 5 * time.Minute, nil
	default:
		return 0, fmt.Errorf("%w: unknown cache_strategy %q", ErrInvalidConfig, strategy)
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// DedupeTTL returns the dedupe window.
func (c *Config) DedupeTTL() time.Duration { return ms(c.DedupeTTLMS) }

// FeedStaleAfter returns the stale window.
func (c *Config) FeedStaleAfter() time.Duration { return ms(c.FeedStaleAfterMS) }

// ReconnectBase returns the first backoff step.
func (c *Config) ReconnectBase() time.Duration { return ms(c.ReconnectBaseMS) }

// ReconnectMax returns the backoff ceiling.
func (c *Config) ReconnectMax() time.Duration { return ms(c.ReconnectMaxMS) }
