package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasylive/internal/adapters/events"
	"github.com/okian/fantasylive/internal/adapters/repository"
	"github.com/okian/fantasylive/internal/domain/alerting"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/internal/domain/scoring"
	"github.com/okian/fantasylive/internal/domain/types"
	"github.com/okian/fantasylive/pkg/logger"
	"github.com/okian/fantasylive/pkg/metrics"
)

const (
	regulationSeconds = 3600
	// A team "scored recently" when its last score came within this much
	// game clock.
	recentScoreWindow = 300
)

// process is the per-update pipeline run by workers: apply the update to
// state, re-project the player, evaluate alerts and publish events.
func (e *Engine) process(ctx context.Context, u model.ClassifiedUpdate) error { //nolint:gocritic // hugeParam
	start := time.Now()
	now := e.now()

	if u.PlayerID == "" && u.GameID == "" {
		// Unkeyed generic messages carry nothing to apply.
		return nil
	}
	if u.PlayerID != "" && u.GameID == "" {
		// Lock the player's game too so its context is consistent.
		if p, err := e.store.Player(ctx, u.PlayerID); err == nil {
			u.GameID = p.GameID
		}
	}

	calc := e.calc.Load()
	var corrupt error
	delta, err := e.store.Apply(ctx, u, func(t *repository.Target) error {
		if err := applyGame(t.Game, &u, now); err != nil {
			return err
		}
		if t.Player == nil {
			return nil
		}
		if err := e.applyPlayer(ctx, t.Player, t.Game, &u, now); err != nil {
			return err
		}
		corrupt = reproject(calc, t.Player, t.Game, now)
		return nil
	})
	if err != nil {
		return err
	}

	if corrupt != nil {
		e.counters.stateCorruptions.Add(1)
		e.counters.processingErrors.Add(1)
		metrics.RecordStateCorruption()
		e.logger.Warn(ctx, "projection discarded",
			logger.String("update_id", u.ID),
			logger.String("player_id", u.PlayerID),
			logger.Error(corrupt),
		)
	}

	e.emit(ctx, &u, delta, now)

	done := e.now()
	age := done.Sub(u.ReceivedAt)
	e.counters.latencyNanos.Add(int64(age))
	e.counters.latencySamples.Add(1)
	metrics.RecordUpdateProcessed(string(u.Kind),
		float64(time.Since(start).Microseconds())/1000,
		float64(age.Microseconds())/1000)
	return nil
}

// applyGame applies the game-level part of an update. g is nil for updates
// without a game.
func applyGame(g *model.GameState, u *model.ClassifiedUpdate, now time.Time) error {
	if g == nil {
		return nil
	}
	changed := true
	switch p := u.Payload.(type) {
	case model.ScoringPlayPayload:
		g.AddScore(p.Team, p.PlayType.TeamPoints())
		g.LastScoringPlay = &model.ScoringPlay{
			PlayerID:       p.PlayerID,
			Team:           p.Team,
			PlayType:       p.PlayType,
			Yards:          p.Yards,
			Quarter:        firstPositive(p.Quarter, g.Quarter),
			ElapsedSeconds: g.ElapsedSeconds,
		}
	case model.GameStatusPayload:
		applyGameStatus(g, &p)
	case model.WeatherPayload:
		g.Weather = &model.Weather{
			TemperatureF:  p.TemperatureF,
			WindMPH:       p.WindMPH,
			Precipitation: p.Precipitation,
			Conditions:    p.Conditions,
			ReportedAt:    now,
		}
	case model.StatDeltaPayload, model.InjuryPayload, model.LineupChangePayload, model.GenericPayload:
		changed = false
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedPayload, u.Payload)
	}
	if changed || g.UpdatedAt.IsZero() {
		g.UpdatedAt = now
	}
	return nil
}

func applyGameStatus(g *model.GameState, p *model.GameStatusPayload) {
	if p.Status != "" {
		g.Status = p.Status
	}
	if p.Quarter > 0 {
		g.Quarter = p.Quarter
	}
	if p.ElapsedSeconds > 0 {
		g.ElapsedSeconds = p.ElapsedSeconds
	}
	if p.HomeTeam != "" {
		g.HomeTeam = p.HomeTeam
	}
	if p.AwayTeam != "" {
		g.AwayTeam = p.AwayTeam
	}
	if p.HomeScore != nil {
		g.HomeScore = *p.HomeScore
	}
	if p.AwayScore != nil {
		g.AwayScore = *p.AwayScore
	}
	if len(p.PossessionShare) > 0 {
		if g.PossessionShare == nil {
			g.PossessionShare = make(map[string]float64, len(p.PossessionShare))
		}
		for team, share := range p.PossessionShare {
			g.PossessionShare[team] = share
		}
	}
	if len(p.Turnovers) > 0 {
		if g.Turnovers == nil {
			g.Turnovers = make(map[string]int, len(p.Turnovers))
		}
		for team, n := range p.Turnovers {
			g.Turnovers[team] = n
		}
	}
}

// applyPlayer applies the player-level part of an update.
func (e *Engine) applyPlayer(ctx context.Context, p *model.PlayerState, g *model.GameState, u *model.ClassifiedUpdate, now time.Time) error {
	p.StartGame(u.GameID)
	quarter := 0
	if g != nil {
		quarter = g.Quarter
	}

	switch pl := u.Payload.(type) {
	case model.ScoringPlayPayload:
		if p.Team == "" {
			p.Team = pl.Team
		}
		addStats(p, scoring.PlayStats(pl.PlayType, pl.Yards), firstPositive(pl.Quarter, quarter))
		if pl.Yards > 0 && pl.PlayType != model.PlayFieldGoal {
			p.RecordPlay(pl.Yards)
		}
		if pl.RedZone {
			p.RedZoneScores++
			p.RedZoneVisits = max(p.RedZoneVisits, p.RedZoneScores)
		}
	case model.StatDeltaPayload:
		identify(p, pl.Name, pl.Team, pl.Position)
		line, unknown := scoring.StatLineFromMap(pl.Stats)
		if len(unknown) > 0 {
			e.logger.Debug(ctx, "unknown stat fields ignored",
				logger.String("update_id", u.ID),
				logger.Any("fields", unknown),
			)
		}
		addStats(p, line, firstPositive(pl.Quarter, quarter))
		p.Plays += pl.Plays
		if pl.LongestPlay > 0 {
			p.RecordPlay(pl.LongestPlay)
		}
		if pl.RedZone {
			p.RedZoneVisits++
		}
		if pl.SeasonAverage != nil {
			p.SeasonAverage = *pl.SeasonAverage
		}
		if len(pl.RecentGameTotals) > 0 {
			p.SetRecentGameTotals(pl.RecentGameTotals)
		}
	case model.InjuryPayload:
		p.Injury = pl.Status
		p.InjurySeverity = pl.Severity
		p.Active = pl.Status != model.InjuryOut
	case model.LineupChangePayload:
		identify(p, pl.Name, pl.Team, pl.Position)
		p.Active = pl.Active && p.Injury != model.InjuryOut
		if pl.SeasonAverage != nil {
			p.SeasonAverage = *pl.SeasonAverage
		}
		if pl.Sentiment != nil {
			p.Sentiment = clampUnit(*pl.Sentiment)
		}
		if len(pl.RecentGameTotals) > 0 {
			p.SetRecentGameTotals(pl.RecentGameTotals)
		}
	case model.GenericPayload:
		if pl.Sentiment != nil {
			p.Sentiment = clampUnit(*pl.Sentiment)
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedPayload, u.Payload)
	}
	if math.IsNaN(p.FantasyPoints) || math.IsInf(p.FantasyPoints, 0) {
		return fmt.Errorf("%w: player %s fantasy points %g", scoring.ErrStateCorruption, p.ID, p.FantasyPoints)
	}
	p.UpdatedAt = now
	return nil
}

func identify(p *model.PlayerState, name, team string, pos model.Position) {
	if name != "" {
		p.Name = name
	}
	if team != "" {
		p.Team = team
	}
	if pos != "" {
		p.Position = pos
	}
}

// addStats adds d to the player's line and credits the point change to the
// quarter it happened in.
func addStats(p *model.PlayerState, d model.StatLine, quarter int) {
	before := p.FantasyPoints
	p.Stats = p.Stats.Add(d)
	p.FantasyPoints = scoring.FantasyPoints(p.Stats)
	p.AddQuarterPoints(quarter, p.FantasyPoints-before)
}

// reproject recomputes metrics and the projection. A projection that breaks
// an invariant is discarded and the previous one kept.
func reproject(calc *scoring.Calculator, p *model.PlayerState, g *model.GameState, now time.Time) error {
	game := g
	if game == nil {
		game = &model.GameState{}
	}
	team := p.Team
	diff := game.ScoreDifferential(team)
	possession := game.Possession(team)

	perf := scoring.Metrics(scoring.MetricsInput{
		Stats:                p.Stats,
		LongestPlay:          p.LongestPlay,
		Plays20:              p.Plays20,
		Plays40:              p.Plays40,
		RedZoneVisits:        p.RedZoneVisits,
		RedZoneScores:        p.RedZoneScores,
		RecentGameTotals:     p.RecentGameTotals,
		QuarterPoints:        p.QuarterPoints,
		Quarter:              game.Quarter,
		ScoreDifferential:    diff,
		TeamScoredRecently:   scoredRecently(game, team),
		PossessionShare:      possession,
		TurnoverDifferential: game.TurnoverDifferential(team),
		TrendingUp:           trendingUp(p, game.Quarter),
	})

	elapsed := game.ElapsedSeconds
	if game.Status == model.GameFinal {
		elapsed = max(elapsed, regulationSeconds)
	}

	proj, factors := calc.Project(scoring.ProjectionInput{
		Situation: scoring.Situation{
			Position:          p.Position,
			ScoreDifferential: diff,
			Weather:           game.Weather,
			RedZoneVisits:     p.RedZoneVisits,
			PossessionShare:   possession,
			Sentiment:         p.Sentiment,
			Momentum:          perf.Momentum,
		},
		CurrentPoints:  p.FantasyPoints,
		ElapsedSeconds: elapsed,
		Quarter:        game.Quarter,
		Plays:          p.Plays,
		Injury:         p.Injury,
		Active:         p.Active,
		SeasonAverage:  p.SeasonAverage,
		Now:            now,
	})
	if err := scoring.CheckProjection(proj); err != nil {
		return err
	}
	if !finiteMetrics(perf) {
		return fmt.Errorf("%w: non-finite metrics", scoring.ErrStateCorruption)
	}
	p.Metrics = perf
	p.Projection = &proj
	p.PushFactors(factors...)
	return nil
}

func finiteMetrics(m model.PerformanceMetrics) bool {
	for _, v := range []float64{m.Efficiency, m.Explosiveness, m.Consistency, m.RedZoneEfficiency, m.Clutch, m.Momentum} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func scoredRecently(g *model.GameState, team string) bool {
	sp := g.LastScoringPlay
	return team != "" && sp != nil && sp.Team == team &&
		g.ElapsedSeconds-sp.ElapsedSeconds <= recentScoreWindow
}

// trendingUp reports more points in the current quarter than the one before.
func trendingUp(p *model.PlayerState, quarter int) bool {
	q := min(quarter, model.Quarters)
	if q < 2 {
		return false
	}
	return p.QuarterPoints[q-1] > p.QuarterPoints[q-2]
}

// emit evaluates alerts for the player touched by u and publishes the
// resulting events. It runs after the store has released its locks.
func (e *Engine) emit(ctx context.Context, u *model.ClassifiedUpdate, d repository.Delta, now time.Time) {
	switch pl := u.Payload.(type) {
	case model.ScoringPlayPayload:
		e.publish(ctx, e.event(events.TypeScoringPlay, u, pl, now))
	case model.WeatherPayload:
		if d.Game != nil {
			e.publish(ctx, e.event(events.TypeWeatherChange, u, d.Game, now))
		}
	}

	if d.Player == nil {
		return
	}

	in := alerting.Input{PlayerID: d.Player.ID, Current: d.Player.Projection, Now: now}
	if d.PrevPlayer != nil {
		in.Previous = d.PrevPlayer.Projection
	}
	if inj, ok := u.Payload.(model.InjuryPayload); ok {
		in.Injury = &alerting.Injury{Status: inj.Status, Severity: inj.Severity, Description: inj.Description}
	}
	out := e.alerts.Evaluate(in)
	if out.Transitioned() {
		e.logger.Debug(ctx, "alert state changed",
			logger.String("player_id", out.PlayerID),
			logger.String("from", string(out.From)),
			logger.String("to", string(out.To)),
			logger.Float64("impact", out.Impact),
		)
	}

	e.publish(ctx, e.event(events.TypePlayerUpdate, u, e.playerView(d.Player, now), now))
	if out.Alert != nil {
		typ := events.TypeUrgentAlert
		if out.Alert.Type == model.AlertInjury {
			typ = events.TypeInjuryAlert
		}
		e.publish(ctx, e.event(typ, u, *out.Alert, now))
	}
	if out.TradeSignal != nil {
		e.publish(ctx, e.event(events.TypeTradeAlert, u, *out.TradeSignal, now))
	}
	for _, opt := range out.Optimizations {
		e.publish(ctx, e.event(events.TypeLineupOptimizationNeeded, u, opt, now))
	}
}

func (e *Engine) event(t events.Type, u *model.ClassifiedUpdate, data any, now time.Time) events.Event {
	return events.Event{
		ID:       uuid.NewString(),
		Type:     t,
		PlayerID: u.PlayerID,
		GameID:   u.GameID,
		Data:     data,
		At:       now,
	}
}

// publish hands ev to the bus. The bus never waits on subscribers, so a slow
// sink cannot hold a worker.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.bus.Publish(ctx, ev); err != nil {
		metrics.RecordEventDropped("bus")
		e.logger.Debug(ctx, "event dropped",
			logger.String("type", string(ev.Type)),
			logger.Error(err),
		)
	}
}

func (e *Engine) playerView(p *model.PlayerState, now time.Time) types.PlayerUpdate {
	v := types.PlayerUpdate{
		Player:       p,
		AlertState:   e.alerts.State(p.ID, now),
		ActiveAlerts: e.alerts.PlayerAlerts(p.ID, now),
	}
	if sig, ok := e.alerts.TradeSignal(p.ID, now); ok {
		v.TradeSignal = &sig
	}
	return v
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func clampUnit(v float64) float64 {
	return max(-1, min(1, v))
}
