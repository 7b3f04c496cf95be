package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasylive/internal/adapters/events"
	"github.com/okian/fantasylive/internal/adapters/mq/worker"
	"github.com/okian/fantasylive/internal/adapters/repository"
	"github.com/okian/fantasylive/internal/config"
	"github.com/okian/fantasylive/internal/domain/scoring"
	"github.com/okian/fantasylive/pkg/logger"
	"github.com/okian/fantasylive/pkg/metrics"
)

// Tick triggers.
const (
	triggerTimer  = "timer"
	triggerUrgent = "urgent"
)

// run drives ticks until ctx ends. Ticks execute against work, which outlives
// a pause, so a batch in flight always completes.
func (e *Engine) run(ctx, work context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(work, triggerTimer)
		case <-e.queue.Urgent():
			// Skipped signals are picked up by the next timer tick.
			if e.limiter.Allow() {
				e.tick(work, triggerUrgent)
			}
		case <-e.retune:
			ticker.Reset(e.interval())
		}
	}
}

// tick drains the queue, plans batches, dispatches them and re-queues what
// was deferred.
func (e *Engine) tick(ctx context.Context, trigger string) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	pending := e.queue.Drain(0)
	if len(pending) == 0 {
		return
	}
	start := time.Now()

	plan := worker.PlanTick(pending, e.pool.Size())
	reports, err := e.pool.Dispatch(ctx, plan.Batches)

	handled := make(map[uint64]struct{}, plan.Size())
	for _, rep := range reports {
		for _, u := range rep.Processed {
			handled[u.Seq] = struct{}{}
		}
		for _, f := range rep.Failed {
			handled[f.Update.Seq] = struct{}{}
			e.recordFailure(ctx, f)
		}
		e.counters.processed.Add(int64(len(rep.Processed)))
	}

	requeue := plan.Deferred
	if err != nil {
		e.logger.Warn(ctx, "dispatch interrupted", logger.String("trigger", trigger), logger.Error(err))
		metrics.RecordErrorByComponent("engine", "dispatch")
		for _, b := range plan.Batches {
			for _, u := range b {
				if _, ok := handled[u.Seq]; !ok {
					requeue = append(requeue, u)
				}
			}
		}
	}
	if len(requeue) > 0 {
		e.queue.Requeue(requeue)
		e.counters.deferred.Add(int64(len(plan.Deferred)))
	}

	elapsed := time.Since(start)
	e.counters.ticks.Add(1)
	e.counters.tickNanos.Add(int64(elapsed))
	metrics.RecordTick(trigger, float64(elapsed.Microseconds())/1000)
}

func (e *Engine) recordFailure(ctx context.Context, f worker.Failure) {
	if errors.Is(f.Err, repository.ErrDuplicate) {
		e.counters.duplicates.Add(1)
		return
	}
	e.counters.processingErrors.Add(1)

	reason := "pipeline"
	switch {
	case errors.Is(f.Err, repository.ErrInvalidKey):
		reason = "invalid_key"
	case errors.Is(f.Err, ErrUnsupportedPayload):
		reason = "payload"
	case errors.Is(f.Err, scoring.ErrStateCorruption):
		reason = "state_corruption"
		e.counters.stateCorruptions.Add(1)
		metrics.RecordStateCorruption()
	}
	metrics.RecordProcessingError(reason)
	e.logger.Warn(ctx, "update failed",
		logger.String("update_id", f.Update.ID),
		logger.String("kind", string(f.Update.Kind)),
		logger.String("reason", reason),
		logger.Error(f.Err),
	)
}

// maintain evicts expired alerts and old final games per the cache strategy,
// then publishes a performance snapshot.
func (e *Engine) maintain(ctx context.Context) {
	now := e.now()
	retention, err := config.Retention(e.Settings().CacheStrategy)
	if err != nil {
		e.logger.Error(ctx, "maintenance skipped", logger.Error(err))
		return
	}

	evicted := e.alerts.Evict(now, retention)
	pruned := e.store.PruneFinalGames(ctx, now.Add(-retention))

	pm := e.PerformanceMetrics(ctx)
	metrics.UpdateActiveAlerts(pm.ActiveAlerts)
	e.publish(ctx, events.Event{
		ID:   uuid.NewString(),
		Type: events.TypePerformanceUpdate,
		Data: pm,
		At:   now,
	})

	e.logger.Debug(ctx, "maintenance sweep",
		logger.Int("alerts_evicted", evicted),
		logger.Int("games_pruned", pruned),
		logger.Int("queue_depth", pm.QueueDepth),
		logger.Int("stale_feeds", pm.StaleFeeds),
	)
}
