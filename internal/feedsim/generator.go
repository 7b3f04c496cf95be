package feedsim

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/internal/domain/scoring"
)

const (
	sourceName     = "feed-sim"
	gameSeconds    = 3600
	quarters       = 4
	seedMix        = 0x9e3779b97f4a7c15
	statusEvery    = 10
	touchdownOdds  = 0.07
	fieldGoalOdds  = 0.05
	turnoverOdds   = 0.02
	injuryOdds     = 0.004
	passOdds       = 0.55
	maxPassYards   = 45
	maxRushYards   = 20
	minFieldGoal   = 20
	fieldGoalRange = 36
)

var teams = []string{"KC", "BUF", "PHI", "SF", "DAL", "MIA", "DET", "BAL", "CIN", "GB", "NYJ", "LAR"}

var roster = []model.Position{model.PosQB, model.PosRB, model.PosWR, model.PosWR, model.PosTE, model.PosK}

// SimPlayer is one generated roster spot.
type SimPlayer struct {
	ID            string
	Name          string
	Team          string
	Position      model.Position
	SeasonAverage float64
	out           bool
}

type simTeam struct {
	name    string
	players []*SimPlayer
	score   int
}

func (t *simTeam) at(pos model.Position) []*SimPlayer {
	var out []*SimPlayer
	for _, p := range t.players {
		if p.Position == pos && !p.out {
			out = append(out, p)
		}
	}
	return out
}

// Feed is a generated set of messages plus the totals they should produce.
type Feed struct {
	Messages   []Message
	Duplicates int
	Players    map[string]*SimPlayer
	stats      map[string]model.StatLine
}

// Expected returns the fantasy points each player should finish with.
func (f *Feed) Expected() map[string]float64 {
	out := make(map[string]float64, len(f.stats))
	for id, s := range f.stats {
		out[id] = scoring.FantasyPoints(s)
	}
	return out
}

// Generator builds game flows. It is not safe for concurrent use.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	runID string
	clock time.Time
	feed  *Feed
}

// NewGenerator creates a generator seeded from cfg.Seed.
func NewGenerator(cfg Config) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^seedMix)),
		runID: uuid.NewString()[:8],
		clock: time.Now().UTC(),
	}
}

// Generate produces the full feed for every configured game.
func (g *Generator) Generate() *Feed {
	g.feed = &Feed{
		Players: make(map[string]*SimPlayer),
		stats:   make(map[string]model.StatLine),
	}
	for i := range g.cfg.Games {
		g.game(i)
	}
	return g.feed
}

func (g *Generator) game(n int) {
	gameID := fmt.Sprintf("%s-g%d", g.runID, n+1)
	home := g.team(gameID, teams[(2*n)%len(teams)])
	away := g.team(gameID, teams[(2*n+1)%len(teams)])

	g.status(gameID, model.GamePregame, 0, 0, home, away)
	g.weather(gameID)
	for _, t := range []*simTeam{home, away} {
		for _, p := range t.players {
			g.emit("lineup_change", map[string]any{
				"gameId":        gameID,
				"playerId":      p.ID,
				"name":          p.Name,
				"team":          p.Team,
				"position":      string(p.Position),
				"active":        true,
				"seasonAverage": p.SeasonAverage,
			})
		}
	}
	g.status(gameID, model.GameLive, 1, 0, home, away)

	plays := g.cfg.PlaysPerGame
	for i := range plays {
		elapsed := i * gameSeconds / plays
		quarter := 1 + i*quarters/plays
		if i == plays/2 {
			g.status(gameID, model.GameHalftime, 2, gameSeconds/2, home, away)
			g.status(gameID, model.GameLive, 3, gameSeconds/2, home, away)
		}

		offense := home
		if g.rng.IntN(2) == 1 {
			offense = away
		}
		g.play(gameID, quarter, offense)
		if g.rng.Float64() < injuryOdds {
			g.injury(gameID, offense)
		}
		if i%statusEvery == 0 {
			g.status(gameID, model.GameLive, quarter, elapsed, home, away)
		}
	}
	g.status(gameID, model.GameFinal, quarters, gameSeconds, home, away)
}

func (g *Generator) team(gameID, name string) *simTeam {
	t := &simTeam{name: name}
	for i, pos := range roster {
		p := &SimPlayer{
			ID:            fmt.Sprintf("%s-%s-%d", gameID, name, i+1),
			Name:          fmt.Sprintf("%s %s%d", name, pos, i+1),
			Team:          name,
			Position:      pos,
			SeasonAverage: float64(5 + g.rng.IntN(18)),
		}
		t.players = append(t.players, p)
		g.feed.Players[p.ID] = p
		g.feed.stats[p.ID] = model.StatLine{}
	}
	return t
}

// play generates one offensive snap and any scoring that follows it.
func (g *Generator) play(gameID string, quarter int, t *simTeam) {
	qbs, rbs := t.at(model.PosQB), t.at(model.PosRB)
	receivers := append(t.at(model.PosWR), t.at(model.PosTE)...)

	roll := g.rng.Float64()
	switch {
	case roll < fieldGoalOdds:
		g.fieldGoal(gameID, quarter, t)
		return
	case roll < fieldGoalOdds+turnoverOdds && len(qbs) > 0:
		g.delta(gameID, quarter, qbs[0], map[string]float64{"interceptions": 1}, false)
		return
	}

	redZone := g.rng.Float64() < touchdownOdds
	if g.rng.Float64() < passOdds && len(qbs) > 0 && len(receivers) > 0 {
		qb := qbs[0]
		rcv := receivers[g.rng.IntN(len(receivers))]
		yards := float64(1 + g.rng.IntN(maxPassYards))
		g.delta(gameID, quarter, qb, map[string]float64{"passingYards": yards}, redZone)
		g.delta(gameID, quarter, rcv, map[string]float64{
			"receptions":     1,
			"targets":        1,
			"receivingYards": yards,
		}, redZone)
		if redZone {
			g.delta(gameID, quarter, qb, map[string]float64{"passingTouchdowns": 1}, true)
			g.score(gameID, quarter, t, rcv, model.PlayReceivingTD, int(yards))
			g.extraPoint(gameID, quarter, t)
		}
		return
	}
	if len(rbs) == 0 {
		return
	}
	rb := rbs[0]
	yards := float64(g.rng.IntN(maxRushYards))
	g.delta(gameID, quarter, rb, map[string]float64{"rushingYards": yards, "rushingAttempts": 1}, redZone)
	if redZone {
		g.score(gameID, quarter, t, rb, model.PlayRushingTD, int(yards))
		g.extraPoint(gameID, quarter, t)
	}
}

func (g *Generator) fieldGoal(gameID string, quarter int, t *simTeam) {
	ks := t.at(model.PosK)
	if len(ks) == 0 {
		return
	}
	g.score(gameID, quarter, t, ks[0], model.PlayFieldGoal, minFieldGoal+g.rng.IntN(fieldGoalRange))
}

func (g *Generator) extraPoint(gameID string, quarter int, t *simTeam) {
	if ks := t.at(model.PosK); len(ks) > 0 {
		g.score(gameID, quarter, t, ks[0], model.PlayExtraPoint, 0)
	}
}

func (g *Generator) delta(gameID string, quarter int, p *SimPlayer, stats map[string]float64, redZone bool) {
	line, _ := scoring.StatLineFromMap(stats)
	g.feed.stats[p.ID] = g.feed.stats[p.ID].Add(line)

	wire := make(map[string]any, len(stats))
	for k, v := range stats {
		wire[k] = v
	}
	g.emit("stat_update", map[string]any{
		"gameId":   gameID,
		"playerId": p.ID,
		"name":     p.Name,
		"team":     p.Team,
		"position": string(p.Position),
		"stats":    wire,
		"plays":    1,
		"redZone":  redZone,
		"quarter":  quarter,
	})
}

func (g *Generator) score(gameID string, quarter int, t *simTeam, p *SimPlayer, play model.ScoringPlayType, yards int) {
	g.feed.stats[p.ID] = g.feed.stats[p.ID].Add(scoring.PlayStats(play, yards))
	t.score += play.TeamPoints()
	g.emit("scoring_play", map[string]any{
		"gameId":   gameID,
		"playerId": p.ID,
		"team":     t.name,
		"playType": string(play),
		"yards":    yards,
		"quarter":  quarter,
		"redZone":  play != model.PlayFieldGoal,
	})
}

func (g *Generator) injury(gameID string, t *simTeam) {
	candidates := make([]*SimPlayer, 0, len(t.players))
	for _, p := range t.players {
		if !p.out && p.Position != model.PosK && p.Position != model.PosQB {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return
	}
	p := candidates[g.rng.IntN(len(candidates))]
	status, severity := model.InjuryQuestionable, model.SeverityMinor
	if g.rng.IntN(2) == 0 {
		status, severity = model.InjuryOut, model.SeveritySevere
		p.out = true
	}
	g.emit("injury", map[string]any{
		"gameId":      gameID,
		"playerId":    p.ID,
		"status":      string(status),
		"severity":    severity.String(),
		"description": "left the field",
	})
}

func (g *Generator) status(gameID string, s model.GameStatus, quarter, elapsed int, home, away *simTeam) {
	g.emit("game_status", map[string]any{
		"gameId":          gameID,
		"status":          string(s),
		"quarter":         quarter,
		"elapsedSeconds":  elapsed,
		"homeTeam":        home.name,
		"awayTeam":        away.name,
		"homeScore":       home.score,
		"awayScore":       away.score,
		"possessionShare": map[string]float64{home.name: 0.5, away.name: 0.5},
	})
}

func (g *Generator) weather(gameID string) {
	precip := []string{"none", "none", "rain", "snow"}[g.rng.IntN(4)]
	g.emit("weather", map[string]any{
		"gameId":        gameID,
		"temperatureF":  float64(20 + g.rng.IntN(70)),
		"windMph":       float64(g.rng.IntN(30)),
		"precipitation": precip,
		"conditions":    precip,
	})
}

// emit appends a message with a unique id and, with DuplicateRate odds, an
// exact resend of it.
func (g *Generator) emit(typ string, data map[string]any) {
	data["id"] = fmt.Sprintf("%s-%d", g.runID, len(g.feed.Messages)+1)
	g.clock = g.clock.Add(time.Second)
	m := Message{
		SourceName: sourceName,
		Type:       typ,
		Data:       data,
		Timestamp:  g.clock.Format(time.RFC3339),
	}
	g.feed.Messages = append(g.feed.Messages, m)
	if g.rng.Float64() < g.cfg.DuplicateRate {
		g.feed.Messages = append(g.feed.Messages, m)
		g.feed.Duplicates++
	}
}
