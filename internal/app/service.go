// Package service runs the live update engine: it classifies inbound feed
// messages, schedules them through the priority queue and worker pool, keeps
// player and game state, and publishes projections, alerts and lineup advice.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/okian/fantasylive/internal/adapters/events"
	"github.com/okian/fantasylive/internal/adapters/feed"
	"github.com/okian/fantasylive/internal/adapters/mq/queue"
	"github.com/okian/fantasylive/internal/adapters/mq/worker"
	"github.com/okian/fantasylive/internal/adapters/repository"
	"github.com/okian/fantasylive/internal/config"
	"github.com/okian/fantasylive/internal/domain/alerting"
	"github.com/okian/fantasylive/internal/domain/classify"
	"github.com/okian/fantasylive/internal/domain/dedupe"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/internal/domain/scoring"
	"github.com/okian/fantasylive/pkg/logger"
	"github.com/okian/fantasylive/pkg/metrics"
)

const (
	urgentRateFactor = 4
	urgentBurst      = 4
	stopTimeout      = 30 * time.Second
)

// Engine is the controller that owns every pipeline component.
type Engine struct {
	// lifecycle transitions
	mu sync.Mutex
	// serializes ticks with pool resizes
	tickMu sync.Mutex
	// serializes UpdateConfig
	cfgMu sync.Mutex

	classifier *classify.Classifier
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	store      repository.Store
	alerts     *alerting.Engine
	bus        *events.Bus
	feeds      *feed.Manager
	limiter    *rate.Limiter
	cron       *cron.Cron

	settings atomic.Pointer[Settings]
	calc     atomic.Pointer[scoring.Calculator]
	schedule string
	feedURLs []string
	feedOpts []feed.Option

	started atomic.Bool
	paused  atomic.Bool

	base       context.Context
	cancelBase context.CancelFunc
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	retune     chan struct{}
	startedAt  time.Time

	counters counters

	now    func() time.Time
	logger logger.Logger
}

type counters struct {
	processed        atomic.Int64
	duplicates       atomic.Int64
	processingErrors atomic.Int64
	stateCorruptions atomic.Int64
	deferred         atomic.Int64
	ticks            atomic.Int64
	tickNanos        atomic.Int64
	latencyNanos     atomic.Int64
	latencySamples   atomic.Int64
}

// New builds an engine from cfg. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.New()
	}
	e := &Engine{
		schedule: cfg.MaintenanceSchedule,
		feedURLs: cfg.Feeds(),
		retune:   make(chan struct{}, 1),
		now:      time.Now,
		logger:   logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	s := settingsFrom(cfg)
	e.settings.Store(&s)
	e.calc.Store(s.calculator())

	e.classifier = classify.New(classify.WithClock(e.now), classify.WithLogger(e.logger.Named("classifier")))
	e.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))
	if e.store == nil {
		e.store = repository.NewMemoryStore(repository.WithDeduper(dedupe.NewInMemoryDeduper(
			dedupe.WithMaxSize(cfg.DedupeSize),
			dedupe.WithTTL(cfg.DedupeTTL()),
		)))
	}
	e.alerts = alerting.New(e.lookupPlayer, alerting.WithLogger(e.logger.Named("alerting")))
	e.bus = events.NewBus()
	e.pool = worker.NewPool(s.WorkerCount, worker.ProcessorFunc(e.process))
	e.limiter = rate.NewLimiter(urgentLimit(s.UpdateHz), urgentBurst)

	if len(e.feedURLs) > 0 {
		fopts := append([]feed.Option{
			feed.WithBackoff(cfg.ReconnectBase(), cfg.ReconnectMax()),
			feed.WithStaleAfter(cfg.FeedStaleAfter()),
			feed.WithLogger(e.logger.Named("feed")),
		}, e.feedOpts...)
		e.feeds = feed.NewManager(e.feedURLs, e.feedSink, fopts...)
	}
	return e
}

func urgentLimit(hz int) rate.Limit {
	return rate.Limit(float64(hz * urgentRateFactor))
}

func (e *Engine) lookupPlayer(id string) (*model.PlayerState, bool) {
	p, err := e.store.Player(context.Background(), id)
	return p, err == nil
}

func (e *Engine) feedSink(ctx context.Context, body []byte, at time.Time) error {
	_, err := e.IngestBody(ctx, body, at)
	return err
}

// Start launches the worker pool, tick loop, maintenance schedule and feed
// listeners. ctx only bounds startup; the engine runs until Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started.Load() {
		return nil
	}

	e.base, e.cancelBase = context.WithCancel(context.WithoutCancel(ctx))
	base := e.base

	c := cron.New()
	if _, err := c.AddFunc(e.schedule, func() { e.maintain(base) }); err != nil {
		e.cancelBase()
		return fmt.Errorf("maintenance schedule %q: %w", e.schedule, err)
	}
	e.cron = c

	e.queue.Reopen()
	e.pool.Start(base)
	e.cron.Start()
	e.startLoop()
	if e.feeds != nil {
		if err := e.feeds.Start(base); err != nil {
			e.logger.Warn(ctx, "feed start failed", logger.Error(err))
		}
	}

	e.startedAt = e.now()
	e.paused.Store(false)
	e.started.Store(true)
	metrics.UpdatePaused(false)

	s := e.Settings()
	e.logger.Info(ctx, "engine started",
		logger.Int("workers", s.WorkerCount),
		logger.Int("update_hz", s.UpdateHz),
		logger.Int("queue_capacity", e.queue.Capacity()),
		logger.Int("feeds", len(e.feedURLs)),
		logger.String("cache_strategy", s.CacheStrategy),
	)
	return nil
}

// Stop halts ingestion and scheduling and waits for the in-flight tick.
// Queued updates are kept and processed after a later Start.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started.Load() {
		return nil
	}
	e.logger.Info(ctx, "stopping engine...")

	e.started.Store(false)
	_ = e.queue.Close()
	if !e.paused.Load() {
		e.stopLoop()
	}
	if e.feeds != nil {
		if err := e.feeds.Stop(ctx); err != nil {
			e.logger.Warn(ctx, "feed stop failed", logger.Error(err))
		}
	}
	<-e.cron.Stop().Done()

	err := e.pool.Shutdown(ctx)
	e.cancelBase()
	e.paused.Store(false)
	metrics.UpdatePaused(false)

	e.logger.Info(ctx, "engine stopped")
	return err
}

// Close stops the engine and ends every event subscription.
func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	err := e.Stop(ctx)
	e.bus.Close()
	return err
}

// Pause stops ticks and feed listeners. The batch in flight completes and
// queued updates wait for Resume.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started.Load() {
		return ErrNotStarted
	}
	if e.paused.Load() {
		return nil
	}
	e.paused.Store(true)
	e.stopLoop()
	if e.feeds != nil {
		if err := e.feeds.Stop(ctx); err != nil {
			e.logger.Warn(ctx, "feed stop failed", logger.Error(err))
		}
	}
	metrics.UpdatePaused(true)
	e.logger.Info(ctx, "engine paused", logger.Int("queued", e.queue.Len(ctx)))
	return nil
}

// Resume restarts feed listeners and the tick loop.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started.Load() {
		return ErrNotStarted
	}
	if !e.paused.Load() {
		return nil
	}
	if e.feeds != nil {
		if err := e.feeds.Start(e.base); err != nil {
			e.logger.Warn(ctx, "feed start failed", logger.Error(err))
		}
	}
	e.startLoop()
	e.paused.Store(false)
	metrics.UpdatePaused(false)
	e.logger.Info(ctx, "engine resumed")
	return nil
}

// Started reports whether the engine is running (paused or not).
func (e *Engine) Started() bool { return e.started.Load() }

// Paused reports whether ticks are paused.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Settings returns the current runtime settings.
func (e *Engine) Settings() Settings { return *e.settings.Load() }

// UpdateConfig applies patch. A worker count change resizes the pool between
// ticks; a frequency change retunes the ticker and the urgent limiter.
func (e *Engine) UpdateConfig(ctx context.Context, patch ConfigPatch) (Settings, error) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	cur := e.Settings()
	next, err := patch.apply(cur)
	if err != nil {
		return cur, err
	}

	if next.WorkerCount != cur.WorkerCount {
		e.tickMu.Lock()
		err := e.pool.Resize(ctx, next.WorkerCount)
		e.tickMu.Unlock()
		if err != nil {
			return cur, fmt.Errorf("resize pool: %w", err)
		}
	}

	e.settings.Store(&next)
	if next.Features != cur.Features || next.BaselineBlend != cur.BaselineBlend {
		e.calc.Store(next.calculator())
	}
	if next.UpdateHz != cur.UpdateHz {
		e.limiter.SetLimit(urgentLimit(next.UpdateHz))
		select {
		case e.retune <- struct{}{}:
		default:
		}
	}

	e.logger.Info(ctx, "engine config updated",
		logger.Int("update_hz", next.UpdateHz),
		logger.Int("workers", next.WorkerCount),
		logger.String("cache_strategy", next.CacheStrategy),
		logger.Bool("baseline_blend", next.BaselineBlend),
	)
	return next, nil
}

// Subscribe returns a channel of outbound events and its cancel func.
func (e *Engine) Subscribe(buffer int) (<-chan events.Event, func()) {
	return e.bus.Subscribe(buffer)
}

// Bus exposes the event bus to sinks such as the Redis stream writer.
func (e *Engine) Bus() *events.Bus { return e.bus }

// startLoop must be called with e.mu held.
func (e *Engine) startLoop() {
	ctx, cancel := context.WithCancel(e.base)
	e.loopCancel = cancel
	e.loopDone = make(chan struct{})
	go e.run(ctx, e.base, e.loopDone)
}

// stopLoop must be called with e.mu held.
func (e *Engine) stopLoop() {
	if e.loopCancel == nil {
		return
	}
	e.loopCancel()
	<-e.loopDone
	e.loopCancel = nil
}

func (e *Engine) interval() time.Duration {
	return time.Second / time.Duration(e.Settings().UpdateHz)
}
