package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/fantasylive/internal/feedsim"
	"github.com/okian/fantasylive/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the engine")
		games      = flag.Int("games", feedsim.DefaultGames, "Number of simultaneous games")
		plays      = flag.Int("plays", feedsim.DefaultPlaysPerGame, "Offensive plays per game")
		dupRate    = flag.Float64("dup", feedsim.DefaultDuplicateRate, "Probability a message is resent")
		batchSize  = flag.Int("batch", feedsim.DefaultBatchSize, "Messages per POST /updates")
		workers    = flag.Int("workers", runtime.NumCPU(), "Number of concurrent submitters")
		rateLimit  = flag.Float64("rate", 0, "Batches per second, 0 for unlimited")
		timeout    = flag.Duration("timeout", feedsim.DefaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", feedsim.DefaultSettleTimeout, "Time allowed for the engine to drain")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		outputFile = flag.String("output", "", "Write the generated feed to this JSON file")
		logFile    = flag.String("log", "", "Log file (default: feedsim_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		feedsim.ShowHelp()
		return
	}

	closeLog, err := feedsim.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)

	_, err = feedsim.Run(ctx, &feedsim.Config{
		BaseURL:       *baseURL,
		Games:         *games,
		PlaysPerGame:  *plays,
		DuplicateRate: *dupRate,
		BatchSize:     *batchSize,
		Workers:       *workers,
		Rate:          *rateLimit,
		Timeout:       *timeout,
		SettleTimeout: *settle,
		Seed:          *seed,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	})
	cancel()
	stop()
	_ = logger.Sync()
	_ = closeLog()
	if err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
