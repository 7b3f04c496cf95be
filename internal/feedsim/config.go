// Package feedsim generates plausible live game feeds, posts them to a running
// engine and checks that the engine's fantasy totals match the totals computed
// locally from the same messages.
package feedsim

import (
	"errors"
	"time"
)

// Defaults used when a Config field is left zero.
const (
	DefaultGames          = 4
	DefaultPlaysPerGame   = 120
	DefaultBatchSize      = 25
	DefaultTimeout        = 30 * time.Second
	DefaultSettleTimeout  = 30 * time.Second
	DefaultDuplicateRate  = 0.05
	defaultWorkers        = 4
	settlePollInterval    = 100 * time.Millisecond
	pointsTolerance       = 0.05
	workerChannelMultiple = 2
)

// Sentinel errors returned by Run.
var (
	ErrUnhealthy = errors.New("engine unhealthy")
	ErrUnsettled = errors.New("engine did not finish processing")
	ErrMismatch  = errors.New("fantasy totals mismatch")
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the engine
	Games         int           // Number of simultaneous games
	PlaysPerGame  int           // Offensive plays generated per game
	DuplicateRate float64       // Probability a message is sent twice
	BatchSize     int           // Messages per POST /updates
	Workers       int           // Concurrent submitters
	Rate          float64       // Batches per second across workers; 0 is unlimited
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // How long to wait for the engine to drain
	Seed          uint64        // Generator seed; equal seeds give equal feeds
	OutputFile    string        // Optional JSON dump of the generated feed
	Verbose       bool          // Log every batch
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Games <= 0 {
		out.Games = DefaultGames
	}
	if out.PlaysPerGame <= 0 {
		out.PlaysPerGame = DefaultPlaysPerGame
	}
	if out.BatchSize <= 0 {
		out.BatchSize = DefaultBatchSize
	}
	if out.Workers <= 0 {
		out.Workers = defaultWorkers
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.SettleTimeout <= 0 {
		out.SettleTimeout = DefaultSettleTimeout
	}
	if out.DuplicateRate < 0 {
		out.DuplicateRate = 0
	}
	return out
}

// Message is one inbound feed message in the engine's wire format.
type Message struct {
	SourceName string         `json:"sourceName,omitempty"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
	Timestamp  string         `json:"timestamp"`
}

// Stats holds run statistics.
type Stats struct {
	MessagesGenerated int
	Duplicates        int
	Batches           int
	Submitted         int
	Accepted          int
	Rejected          int
	FailedBatches     int
	PlayersChecked    int
	Mismatches        int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
