package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasylive/internal/adapters/events"
	"github.com/okian/fantasylive/internal/domain/classify"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/internal/domain/types"
	"github.com/okian/fantasylive/pkg/logger"
)

// Ingest classifies raw and enqueues it. It never waits for processing.
func (e *Engine) Ingest(ctx context.Context, raw model.RawUpdate) (model.ClassifiedUpdate, error) { //nolint:gocritic // hugeParam
	if err := e.accepting(); err != nil {
		return model.ClassifiedUpdate{}, err
	}
	if raw.ArrivedAt.IsZero() {
		raw.ArrivedAt = e.now()
	}
	u, err := e.classifier.Classify(ctx, raw)
	if err != nil {
		return model.ClassifiedUpdate{}, err
	}
	if !e.queue.Enqueue(ctx, u) {
		return u, fmt.Errorf("enqueue %s: %w", u.ID, ErrQueueFull)
	}
	return u, nil
}

// IngestBody decodes one inbound message or an array of them and ingests
// each. It returns how many were accepted; rejected messages are joined into
// the error.
func (e *Engine) IngestBody(ctx context.Context, body []byte, arrivedAt time.Time) (int, error) {
	if err := e.accepting(); err != nil {
		return 0, err
	}
	raws, err := classify.DecodeRaw(body, arrivedAt)
	if err != nil {
		e.classifier.Reject(ctx, err)
		return 0, err
	}

	accepted := 0
	var errs []error
	for _, raw := range raws {
		if _, err := e.Ingest(ctx, raw); err != nil {
			errs = append(errs, err)
			continue
		}
		accepted++
	}
	return accepted, errors.Join(errs...)
}

func (e *Engine) accepting() error {
	switch {
	case !e.started.Load():
		return ErrNotStarted
	case e.paused.Load():
		return ErrPaused
	}
	return nil
}

// ActiveGames returns games that are live or at halftime.
func (e *Engine) ActiveGames(ctx context.Context) []*model.GameState {
	return e.store.ActiveGames(ctx)
}

// Games returns every tracked game.
func (e *Engine) Games(ctx context.Context) []*model.GameState {
	return e.store.Games(ctx)
}

// PlayerUpdate returns the current view of one player.
func (e *Engine) PlayerUpdate(ctx context.Context, playerID string) (types.PlayerUpdate, error) {
	p, err := e.store.Player(ctx, playerID)
	if err != nil {
		return types.PlayerUpdate{}, fmt.Errorf("player %s: %w", playerID, err)
	}
	return e.playerView(p, e.now()), nil
}

// AllPlayerUpdates returns the view of every tracked player, ordered by id.
func (e *Engine) AllPlayerUpdates(ctx context.Context) []types.PlayerUpdate {
	now := e.now()
	players := e.store.Players(ctx)
	out := make([]types.PlayerUpdate, 0, len(players))
	for _, p := range players {
		out = append(out, e.playerView(p, now))
	}
	return out
}

// TrackLineup starts watching a lineup. If a starter is already alerted the
// advice is returned and a lineupOptimizationNeeded event is published.
func (e *Engine) TrackLineup(ctx context.Context, l model.Lineup) (model.LineupOptimization, bool, error) { //nolint:gocritic // hugeParam
	if l.ID == "" || len(l.Starters) == 0 {
		return model.LineupOptimization{}, false, fmt.Errorf("%w: id and starters are required", ErrInvalidLineup)
	}
	now := e.now()
	opt, needed := e.alerts.TrackLineup(l, now)
	if needed {
		e.publish(ctx, events.Event{
			ID:   uuid.NewString(),
			Type: events.TypeLineupOptimizationNeeded,
			Data: opt,
			At:   now,
		})
	}
	return opt, needed, nil
}

// UntrackLineup stops watching a lineup.
func (e *Engine) UntrackLineup(lineupID string) error {
	return e.alerts.UntrackLineup(lineupID)
}

// Lineup returns a tracked lineup.
func (e *Engine) Lineup(lineupID string) (*model.Lineup, error) {
	return e.alerts.Lineup(lineupID)
}

// LineupOptimization returns the latest advice for a tracked lineup.
func (e *Engine) LineupOptimization(lineupID string) (model.LineupOptimization, error) {
	return e.alerts.LineupOptimization(lineupID)
}

// AllTradeAlerts returns every retained trade signal, active or expired.
func (e *Engine) AllTradeAlerts() []model.TradeSignal {
	return e.alerts.AllTradeSignals()
}

// ActiveTradeAlerts returns unexpired trade signals.
func (e *Engine) ActiveTradeAlerts() []model.TradeSignal {
	return e.alerts.ActiveTradeSignals(e.now())
}

// ActiveAlerts returns unexpired alerts, newest first.
func (e *Engine) ActiveAlerts() []model.Alert {
	return e.alerts.ActiveAlerts(e.now())
}

// Acknowledge expires a player's active alerts. It reports whether the
// player was alerted.
func (e *Engine) Acknowledge(ctx context.Context, playerID string) bool {
	ok := e.alerts.Acknowledge(playerID, e.now())
	if ok {
		e.logger.Info(ctx, "alerts acknowledged", logger.String("player_id", playerID))
	}
	return ok
}

// PerformanceMetrics returns a snapshot of engine counters and state sizes.
func (e *Engine) PerformanceMetrics(ctx context.Context) types.PerformanceMetrics {
	now := e.now()
	s := e.Settings()
	cs := e.classifier.Stats()
	players, games := e.store.Count(ctx)
	alerts, signals := e.alerts.ActiveCount(now)

	pm := types.PerformanceMetrics{
		TotalReceived:    cs.Received,
		Malformed:        cs.Malformed,
		Classified:       cs.Classified,
		Processed:        e.counters.processed.Load(),
		Duplicates:       e.counters.duplicates.Load(),
		ProcessingErrors: e.counters.processingErrors.Load(),
		StateCorruptions: e.counters.stateCorruptions.Load(),
		Deferred:         e.counters.deferred.Load(),
		Dropped:          e.queue.Dropped(),
		EventsDropped:    e.bus.Dropped(),

		QueueDepth:    e.queue.Len(ctx),
		QueueCapacity: e.queue.Capacity(),
		Workers:       e.pool.Size(),
		UpdateHz:      s.UpdateHz,
		Ticks:         e.counters.ticks.Load(),
		AvgTickMs:     avgMs(e.counters.tickNanos.Load(), e.counters.ticks.Load()),
		AvgLatencyMs:  avgMs(e.counters.latencyNanos.Load(), e.counters.latencySamples.Load()),

		Players:            players,
		Games:              games,
		ActiveGames:        len(e.store.ActiveGames(ctx)),
		ActiveAlerts:       alerts,
		ActiveTradeSignals: signals,

		Paused:        e.paused.Load(),
		CacheStrategy: s.CacheStrategy,
		UpdatedAt:     now,
	}
	if e.started.Load() {
		pm.Uptime = now.Sub(e.startedAt).Round(time.Second).String()
	}
	if e.feeds != nil {
		pm.Feeds = e.feeds.Statuses()
		for _, f := range pm.Feeds {
			if f.Stale {
				pm.StaleFeeds++
			}
		}
	}
	return pm
}

func avgMs(totalNanos, n int64) float64 {
	if n == 0 {
		return 0
	}
	return float64(totalNanos) / float64(n) / float64(time.Millisecond)
}
