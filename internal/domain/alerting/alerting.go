// Package alerting turns projection changes and injury reports into alerts,
// trade-value signals and lineup swap advice.
package alerting

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/pkg/logger"
	"github.com/okian/fantasylive/pkg/metrics"
)

const (
	watchThreshold   = 30
	alertThreshold   = 50
	tradeThreshold   = 10
	valueChangeRatio = 0.3
	maxAlternatives  = 3

	defaultUrgentTTL = 15 * time.Minute
	defaultTradeTTL  = 60 * time.Minute
)

// Lookup returns a copy of a player's current state.
type Lookup func(playerID string) (*model.PlayerState, bool)

// Engine holds per-player alert state and tracked lineups.
// It is safe for concurrent use.
type Engine struct {
	mu            sync.RWMutex
	players       map[string]*playerAlerts
	lineups       map[string]*model.Lineup
	optimizations map[string]model.LineupOptimization

	lookup    Lookup
	newID     func() string
	urgentTTL time.Duration
	tradeTTL  time.Duration
	log       logger.Logger
}

type playerAlerts struct {
	state     model.AlertState
	changedAt time.Time
	alerts    []model.Alert
	signals   []model.TradeSignal
}

// Injury describes an injury report that forces an alert.
type Injury struct {
	Status      model.InjuryStatus
	Severity    model.InjurySeverity
	Description string
}

// Input is one observation of a player after an update was applied.
type Input struct {
	PlayerID string
	Previous *model.Projection
	Current  *model.Projection
	Injury   *Injury
	Now      time.Time
}

// Outcome is what an evaluation produced.
type Outcome struct {
	PlayerID      string
	From          model.AlertState
	To            model.AlertState
	Impact        float64
	Alert         *model.Alert
	TradeSignal   *model.TradeSignal
	Optimizations []model.LineupOptimization
}

// Transitioned reports whether the player's state changed.
func (o Outcome) Transitioned() bool {
	return o.From != o.To
}

// New creates an Engine. lookup resolves bench players when ranking
// alternatives; it may be nil when no lineups are tracked.
func New(lookup Lookup, opts ...Option) *Engine {
	e := &Engine{
		players:       make(map[string]*playerAlerts),
		lineups:       make(map[string]*model.Lineup),
		optimizations: make(map[string]model.LineupOptimization),
		lookup:        lookup,
		newID:         uuid.NewString,
		urgentTTL:     defaultUrgentTTL,
		tradeTTL:      defaultTradeTTL,
		log:           logger.Named("alerting"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.lookup == nil {
		e.lookup = func(string) (*model.PlayerState, bool) { return nil, false }
	}
	return e
}

// ImmediateImpact is the relative change of the projected final, scaled to
// [-100,100]. Zero without a previous projection.
func ImmediateImpact(prev, cur *model.Projection) float64 {
	if prev == nil || cur == nil {
		return 0
	}
	delta := (cur.FinalPoints - prev.FinalPoints) / math.Max(math.Abs(prev.FinalPoints), 1) * 100
	return math.Max(-100, math.Min(100, delta))
}

// Evaluate advances the player's state machine.
func (e *Engine) Evaluate(in Input) Outcome {
	impact := ImmediateImpact(in.Previous, in.Current)
	magnitude := math.Abs(impact)

	e.mu.Lock()
	defer e.mu.Unlock()

	pa := e.player(in.PlayerID)
	e.expire(pa, in.Now)

	out := Outcome{PlayerID: in.PlayerID, From: pa.state, Impact: impact}

	if in.Injury != nil {
		msg := fmt.Sprintf("injury: %s (%s)", in.Injury.Status, in.Injury.Severity)
		if in.Injury.Description != "" {
			msg += ": " + in.Injury.Description
		}
		out.Alert = e.raise(pa, in.PlayerID, model.AlertInjury, impact,
			in.Injury.Severity >= model.SeverityModerate, msg, in.Now)
	} else {
		if (pa.state == model.StateNormal || pa.state == model.StateExpired) && magnitude > watchThreshold {
			e.transition(pa, model.StateWatch, in.Now)
		}
		if (pa.state == model.StateWatch || pa.state == model.StateAlerted) && magnitude > alertThreshold {
			msg := fmt.Sprintf("projection moved %.1f%%", impact)
			out.Alert = e.raise(pa, in.PlayerID, model.AlertProjection, impact, false, msg, in.Now)
		}
	}

	if magnitude > tradeThreshold && !hasActiveSignal(pa, in.Now) {
		sig := model.TradeSignal{
			ID:          e.newID(),
			PlayerID:    in.PlayerID,
			Impact:      impact,
			ValueChange: impact * valueChangeRatio,
			CreatedAt:   in.Now,
			ExpiresAt:   in.Now.Add(e.tradeTTL),
		}
		pa.signals = append(pa.signals, sig)
		out.TradeSignal = &sig
		metrics.RecordTradeSignal()
	}

	out.To = pa.state
	if out.Alert != nil {
		out.Optimizations = e.optimizeFor(in.PlayerID, in.Now)
	}
	return out
}

// Acknowledge expires the player's active alerts.
// It reports whether the player was alerted.
func (e *Engine) Acknowledge(playerID string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	pa, ok := e.players[playerID]
	if !ok {
		return false
	}
	e.expire(pa, now)
	if pa.state != model.StateAlerted {
		return false
	}
	for i := range pa.alerts {
		if pa.alerts[i].Active(now) {
			pa.alerts[i].ExpiresAt = now
		}
	}
	e.transition(pa, model.StateExpired, now)
	e.log.Debug(context.Background(), "alert acknowledged", logger.String("player_id", playerID))
	return true
}

// State returns the player's alert state; Normal when unknown.
func (e *Engine) State(playerID string, now time.Time) model.AlertState {
	e.mu.Lock()
	defer e.mu.Unlock()

	pa, ok := e.players[playerID]
	if !ok {
		return model.StateNormal
	}
	e.expire(pa, now)
	return pa.state
}

// ActiveAlerts returns unexpired alerts, newest first.
func (e *Engine) ActiveAlerts(now time.Time) []model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []model.Alert
	for _, pa := range e.players {
		for _, a := range pa.alerts {
			if a.Active(now) {
				out = append(out, a)
			}
		}
	}
	sortNewestFirst(out, func(a model.Alert) time.Time { return a.CreatedAt })
	return out
}

// PlayerAlerts returns the player's unexpired alerts.
func (e *Engine) PlayerAlerts(playerID string, now time.Time) []model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pa, ok := e.players[playerID]
	if !ok {
		return nil
	}
	var out []model.Alert
	for _, a := range pa.alerts {
		if a.Active(now) {
			out = append(out, a)
		}
	}
	return out
}

// ActiveTradeSignals returns unexpired trade signals, newest first.
func (e *Engine) ActiveTradeSignals(now time.Time) []model.TradeSignal {
	return e.tradeSignals(func(s model.TradeSignal) bool { return s.Active(now) })
}

// AllTradeSignals returns every retained trade signal, newest first.
func (e *Engine) AllTradeSignals() []model.TradeSignal {
	return e.tradeSignals(func(model.TradeSignal) bool { return true })
}

// TradeSignal returns the player's unexpired signal, if any.
func (e *Engine) TradeSignal(playerID string, now time.Time) (model.TradeSignal, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if pa, ok := e.players[playerID]; ok {
		for i := len(pa.signals) - 1; i >= 0; i-- {
			if pa.signals[i].Active(now) {
				return pa.signals[i], true
			}
		}
	}
	return model.TradeSignal{}, false
}

func (e *Engine) tradeSignals(keep func(model.TradeSignal) bool) []model.TradeSignal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []model.TradeSignal
	for _, pa := range e.players {
		for _, s := range pa.signals {
			if keep(s) {
				out = append(out, s)
			}
		}
	}
	sortNewestFirst(out, func(s model.TradeSignal) time.Time { return s.CreatedAt })
	return out
}

// ActiveCount returns the number of active alerts and trade signals.
func (e *Engine) ActiveCount(now time.Time) (alerts, signals int) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, pa := range e.players {
		for _, a := range pa.alerts {
			if a.Active(now) {
				alerts++
			}
		}
		if hasActiveSignal(pa, now) {
			signals++
		}
	}
	return alerts, signals
}

// Evict drops alerts and signals that expired more than retention ago and
// forgets players left with nothing. It returns the number of entries removed.
func (e *Engine) Evict(now time.Time, retention time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := now.Add(-retention)
	removed := 0
	for id, pa := range e.players {
		e.expire(pa, now)
		n := len(pa.alerts) + len(pa.signals)
		pa.alerts = slices.DeleteFunc(pa.alerts, func(a model.Alert) bool { return a.ExpiresAt.Before(cutoff) })
		pa.signals = slices.DeleteFunc(pa.signals, func(s model.TradeSignal) bool { return s.ExpiresAt.Before(cutoff) })
		removed += n - len(pa.alerts) - len(pa.signals)

		if len(pa.alerts) == 0 && len(pa.signals) == 0 && pa.state != model.StateWatch && pa.changedAt.Before(cutoff) {
			delete(e.players, id)
		}
	}
	return removed
}

func (e *Engine) player(id string) *playerAlerts {
	pa, ok := e.players[id]
	if !ok {
		pa = &playerAlerts{state: model.StateNormal}
		e.players[id] = pa
	}
	return pa
}

// expire moves an Alerted player to Expired once no alert is active.
func (e *Engine) expire(pa *playerAlerts, now time.Time) {
	if pa.state != model.StateAlerted {
		return
	}
	for _, a := range pa.alerts {
		if a.Active(now) {
			return
		}
	}
	e.transition(pa, model.StateExpired, now)
}

func (e *Engine) transition(pa *playerAlerts, to model.AlertState, now time.Time) {
	pa.state = to
	pa.changedAt = now
}

func (e *Engine) raise(pa *playerAlerts, playerID string, typ model.AlertType, impact float64, critical bool, msg string, now time.Time) *model.Alert {
	a := model.Alert{
		ID:        e.newID(),
		PlayerID:  playerID,
		Type:      typ,
		Impact:    impact,
		Critical:  critical,
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(e.urgentTTL),
	}
	pa.alerts = append(pa.alerts, a)
	e.transition(pa, model.StateAlerted, now)
	metrics.RecordAlert(string(typ))
	return &a
}

func hasActiveSignal(pa *playerAlerts, now time.Time) bool {
	return slices.ContainsFunc(pa.signals, func(s model.TradeSignal) bool { return s.Active(now) })
}

func sortNewestFirst[T any](s []T, at func(T) time.Time) {
	slices.SortStableFunc(s, func(a, b T) int { return at(b).Compare(at(a)) })
}
