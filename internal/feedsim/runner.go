package feedsim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/fantasylive/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Report is the outcome of a run.
type Report struct {
	Stats      Stats
	Mismatches []Mismatch
}

// Run generates a feed, submits it, waits for the engine to drain and
// verifies the engine's totals.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	c := cfg.withDefaults()
	log := logger.Get().Named("feedsim")
	rep := &Report{Stats: Stats{StartTime: time.Now()}}

	log.Info(ctx, "starting feed simulation",
		logger.String("baseURL", c.BaseURL),
		logger.Int("games", c.Games),
		logger.Int("playsPerGame", c.PlaysPerGame),
		logger.Int("workers", c.Workers),
		logger.Int("batchSize", c.BatchSize),
		logger.Float64("duplicateRate", c.DuplicateRate),
	)

	client := NewHTTPClient(c.BaseURL, c.Timeout)
	if err := client.Health(ctx); err != nil {
		return rep, fmt.Errorf("service health check failed: %w", err)
	}
	baseline, err := client.Stats(ctx)
	if err != nil {
		return rep, fmt.Errorf("baseline stats: %w", err)
	}

	feed := NewGenerator(c).Generate()
	rep.Stats.MessagesGenerated = len(feed.Messages)
	rep.Stats.Duplicates = feed.Duplicates
	log.Info(ctx, "feed generated",
		logger.Int("messages", len(feed.Messages)),
		logger.Int("duplicates", feed.Duplicates),
		logger.Int("players", len(feed.Players)),
	)
	if c.OutputFile != "" {
		if err := saveFeed(c.OutputFile, feed.Messages); err != nil {
			log.Warn(ctx, "failed to save feed", logger.Error(err))
		}
	}

	submit(ctx, &c, client, feed.Messages, &rep.Stats, log)

	handledBefore := baseline.Processed + baseline.Duplicates + baseline.ProcessingErrors
	if err := settle(ctx, &c, client, handledBefore+int64(rep.Stats.Accepted)); err != nil {
		return rep, err
	}

	players, err := client.Players(ctx)
	if err != nil {
		return rep, fmt.Errorf("players: %w", err)
	}
	rep.Mismatches = Verify(feed.Expected(), players)
	rep.Stats.PlayersChecked = len(feed.Players)
	rep.Stats.Mismatches = len(rep.Mismatches)

	rep.Stats.EndTime = time.Now()
	rep.Stats.Duration = rep.Stats.EndTime.Sub(rep.Stats.StartTime)
	logStats(ctx, log, &rep.Stats)

	if len(rep.Mismatches) > 0 {
		for _, m := range rep.Mismatches {
			log.Warn(ctx, "fantasy total mismatch",
				logger.String("player_id", m.PlayerID),
				logger.Float64("expected", m.Expected),
				logger.Float64("actual", m.Actual),
				logger.Bool("missing", m.Missing),
			)
		}
		return rep, fmt.Errorf("%w: %d of %d players", ErrMismatch, len(rep.Mismatches), rep.Stats.PlayersChecked)
	}
	log.Info(ctx, "simulation completed successfully")
	return rep, nil
}

// submit posts messages in batches with a pool of workers. Batches keep the
// generated order within themselves; across batches order is not kept.
func submit(ctx context.Context, c *Config, client *HTTPClient, msgs []Message, stats *Stats, log logger.Logger) {
	var limiter *rate.Limiter
	if c.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.Rate), 1)
	}

	batches := make(chan []Message, c.Workers*workerChannelMultiple)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for range c.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}
				res, err := client.PostUpdates(ctx, batch)

				mu.Lock()
				stats.Batches++
				stats.Submitted += len(batch)
				if err != nil {
					stats.FailedBatches++
					stats.Rejected += len(batch)
				} else {
					stats.Accepted += res.Accepted
					stats.Rejected += res.Rejected
				}
				mu.Unlock()

				if err != nil {
					log.Warn(ctx, "batch failed", logger.Int("size", len(batch)), logger.Error(err))
				} else if c.Verbose {
					log.Debug(ctx, "batch accepted", logger.Int("accepted", res.Accepted), logger.Int("rejected", res.Rejected))
				}
			}
		}()
	}

	go func() {
		defer close(batches)
		for start := 0; start < len(msgs); start += c.BatchSize {
			end := min(start+c.BatchSize, len(msgs))
			select {
			case <-ctx.Done():
				return
			case batches <- msgs[start:end]:
			}
		}
	}()
	wg.Wait()
}

// settle polls /stats until the engine has handled target updates.
func settle(ctx context.Context, c *Config, client *HTTPClient, target int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.SettleTimeout)
	defer cancel()

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		pm, err := client.Stats(ctx)
		if err == nil && pm.Processed+pm.Duplicates+pm.ProcessingErrors >= target && pm.QueueDepth == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: want %d handled updates", ErrUnsettled, target)
		case <-ticker.C:
		}
	}
}

func saveFeed(filename string, msgs []Message) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	return nil
}

func logStats(ctx context.Context, log logger.Logger, s *Stats) {
	var perSecond float64
	if s.Duration > 0 {
		perSecond = float64(s.Submitted) / s.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("messagesGenerated", s.MessagesGenerated),
		logger.Int("duplicates", s.Duplicates),
		logger.Int("batches", s.Batches),
		logger.Int("submitted", s.Submitted),
		logger.Int("accepted", s.Accepted),
		logger.Int("rejected", s.Rejected),
		logger.Int("failedBatches", s.FailedBatches),
		logger.Int("playersChecked", s.PlayersChecked),
		logger.Int("mismatches", s.Mismatches),
		logger.Duration("duration", s.Duration),
		logger.Float64("messagesPerSecond", perSecond),
	)
}
