package feedsim

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/fantasylive/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends log output to stdout and logFile. An empty logFile gets
// a timestamped name. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	if logFile == "" {
		logFile = "feedsim_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return file.Close, nil
}

// ShowHelp prints usage information for the feed simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Fantasy Live Feed Simulator
===========================

Generates live game feeds, posts them to a running engine and checks that the
engine's fantasy totals match the totals computed from the same messages.

Usage:
  go run ./cmd/feed-sim [options]

Options:
  -url string         Base URL of the engine (default "http://localhost:9080")
  -games int          Simultaneous games (default 4)
  -plays int          Offensive plays per game (default 120)
  -dup float          Probability a message is resent (default 0.05)
  -batch int          Messages per POST /updates (default 25)
  -workers int        Concurrent submitters (default CPU cores)
  -rate float         Batches per second, 0 for unlimited (default 0)
  -timeout duration   HTTP request timeout (default 30s)
  -settle duration    Time allowed for the engine to drain (default 30s)
  -seed uint          Generator seed (default: current time)
  -output string      Write the generated feed to this JSON file
  -log string         Log file (default: feedsim_TIMESTAMP.log)
  -verbose            Enable debug logging
  -help               Show this help message

Examples:
  go run ./cmd/feed-sim -games 8 -plays 200
  go run ./cmd/feed-sim -url http://localhost:8080 -workers 16 -rate 50
`)
}
