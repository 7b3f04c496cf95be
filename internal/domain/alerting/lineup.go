package alerting

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/pkg/metrics"
)

// TrackLineup starts watching a lineup, replacing any lineup with the same id.
// It returns advice immediately when a starter is already alerted.
func (e *Engine) TrackLineup(l model.Lineup, now time.Time) (model.LineupOptimization, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lineups[l.ID] = l.Clone()
	delete(e.optimizations, l.ID)

	opt, ok := e.optimize(e.lineups[l.ID], now)
	if ok {
		e.optimizations[l.ID] = opt
	}
	return opt, ok
}

// UntrackLineup stops watching a lineup.
func (e *Engine) UntrackLineup(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.lineups[id]; !ok {
		return fmt.Errorf("untrack %q: %w", id, ErrLineupNotFound)
	}
	delete(e.lineups, id)
	delete(e.optimizations, id)
	return nil
}

// Lineup returns a copy of a tracked lineup.
func (e *Engine) Lineup(id string) (*model.Lineup, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	l, ok := e.lineups[id]
	if !ok {
		return nil, fmt.Errorf("lineup %q: %w", id, ErrLineupNotFound)
	}
	return l.Clone(), nil
}

// LineupOptimization returns the latest advice for a tracked lineup. The
// advice is empty when no starter has been alerted.
func (e *Engine) LineupOptimization(id string) (model.LineupOptimization, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.lineups[id]; !ok {
		return model.LineupOptimization{}, fmt.Errorf("lineup %q: %w", id, ErrLineupNotFound)
	}
	opt, ok := e.optimizations[id]
	if !ok {
		return model.LineupOptimization{LineupID: id}, nil
	}
	opt.Recommendations = slices.Clone(opt.Recommendations)
	return opt, nil
}

// optimizeFor recomputes advice for every tracked lineup that starts playerID.
// Must be called with e.mu held.
func (e *Engine) optimizeFor(playerID string, now time.Time) []model.LineupOptimization {
	var out []model.LineupOptimization
	for id, l := range e.lineups {
		if !l.Starts(playerID) {
			continue
		}
		if opt, ok := e.optimize(l, now); ok {
			e.optimizations[id] = opt
			out = append(out, opt)
			metrics.RecordLineupRecommendation()
		}
	}
	slices.SortFunc(out, func(a, b model.LineupOptimization) int { return cmp.Compare(a.LineupID, b.LineupID) })
	return out
}

// optimize ranks bench replacements for each alerted starter.
// Must be called with e.mu held.
func (e *Engine) optimize(l *model.Lineup, now time.Time) (model.LineupOptimization, bool) {
	var recs []model.SlotRecommendation
	for _, slot := range l.Starters {
		if e.stateLocked(slot.PlayerID, now) != model.StateAlerted {
			continue
		}
		recs = append(recs, model.SlotRecommendation{
			Slot:         slot.Slot,
			PlayerID:     slot.PlayerID,
			Reason:       e.reason(slot.PlayerID, now),
			Alternatives: e.alternatives(l, slot.Slot, now),
		})
	}
	if len(recs) == 0 {
		return model.LineupOptimization{}, false
	}
	return model.LineupOptimization{LineupID: l.ID, Recommendations: recs, CreatedAt: now}, true
}

func (e *Engine) alternatives(l *model.Lineup, slot model.Position, now time.Time) []model.Alternative {
	var alts []model.Alternative
	for _, id := range l.Bench {
		if e.stateLocked(id, now) == model.StateAlerted {
			continue
		}
		p, ok := e.lookup(id)
		if !ok || !p.Position.Eligible(slot) {
			continue
		}
		alt := model.Alternative{PlayerID: id, Name: p.Name, Position: p.Position, ProjectedFinal: p.FantasyPoints}
		if p.Projection != nil {
			alt.ProjectedFinal = p.Projection.FinalPoints
			alt.Floor = p.Projection.Floor
			alt.Ceiling = p.Projection.Ceiling
		}
		alts = append(alts, alt)
	}
	slices.SortStableFunc(alts, func(a, b model.Alternative) int {
		if c := cmp.Compare(b.ProjectedFinal, a.ProjectedFinal); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	if len(alts) > maxAlternatives {
		alts = alts[:maxAlternatives]
	}
	return alts
}

// stateLocked reads a state without mutating it. Must be called with e.mu held.
func (e *Engine) stateLocked(playerID string, now time.Time) model.AlertState {
	pa, ok := e.players[playerID]
	if !ok {
		return model.StateNormal
	}
	if pa.state == model.StateAlerted && !slices.ContainsFunc(pa.alerts, func(a model.Alert) bool { return a.Active(now) }) {
		return model.StateExpired
	}
	return pa.state
}

func (e *Engine) reason(playerID string, now time.Time) string {
	pa := e.players[playerID]
	for i := len(pa.alerts) - 1; i >= 0; i-- {
		if pa.alerts[i].Active(now) {
			return pa.alerts[i].Message
		}
	}
	return "alerted"
}
