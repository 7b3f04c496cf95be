package model

import (
	"maps"
	"time"
)

// GameStatus is the lifecycle state of a game.
type GameStatus string

// Game statuses.
const (
	GamePregame   GameStatus = "pregame"
	GameLive      GameStatus = "live"
	GameHalftime  GameStatus = "halftime"
	GameFinal     GameStatus = "final"
	GamePostponed GameStatus = "postponed"
	GameCancelled GameStatus = "cancelled"
)

// Active reports whether the game is in progress.
func (s GameStatus) Active() bool {
	return s == GameLive || s == GameHalftime
}

// Valid reports whether s is a known status.
func (s GameStatus) Valid() bool {
	switch s {
	case GamePregame, GameLive, GameHalftime, GameFinal, GamePostponed, GameCancelled:
		return true
	}
	return false
}

// Weather is the latest reported weather at a game.
type Weather struct {
	TemperatureF  *float64  `json:"temperatureF,omitempty"`
	WindMPH       float64   `json:"windMph"`
	Precipitation string    `json:"precipitation"`
	Conditions    string    `json:"conditions"`
	ReportedAt    time.Time `json:"reportedAt"`
}

// Precipitating reports rain or snow.
func (w *Weather) Precipitating() bool {
	return w != nil && (w.Precipitation == "rain" || w.Precipitation == "snow")
}

// Freezing reports a known temperature below 32F.
func (w *Weather) Freezing() bool {
	return w != nil && w.TemperatureF != nil && *w.TemperatureF < 32
}

// Clear reports known weather with no precipitation and calm wind.
func (w *Weather) Clear() bool {
	return w != nil && !w.Precipitating() && w.WindMPH <= 15
}

// ScoringPlay is the last score recorded for a game.
type ScoringPlay struct {
	PlayerID       string          `json:"playerId"`
	Team           string          `json:"team"`
	PlayType       ScoringPlayType `json:"playType"`
	Yards          int             `json:"yards"`
	Quarter        int             `json:"quarter"`
	ElapsedSeconds int             `json:"elapsedSeconds"`
}

// GameState is the live state of one game.
type GameState struct {
	ID              string             `json:"id"`
	Status          GameStatus         `json:"status"`
	Quarter         int                `json:"quarter"`
	ElapsedSeconds  int                `json:"elapsedSeconds"`
	HomeTeam        string             `json:"homeTeam"`
	AwayTeam        string             `json:"awayTeam"`
	HomeScore       int                `json:"homeScore"`
	AwayScore       int                `json:"awayScore"`
	LastScoringPlay *ScoringPlay       `json:"lastScoringPlay,omitempty"`
	Weather         *Weather           `json:"weather,omitempty"`
	PossessionShare map[string]float64 `json:"possessionShare,omitempty"`
	Turnovers       map[string]int     `json:"turnovers,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// Clone returns a deep copy.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	c := *g
	if g.LastScoringPlay != nil {
		sp := *g.LastScoringPlay
		c.LastScoringPlay = &sp
	}
	if g.Weather != nil {
		w := *g.Weather
		if w.TemperatureF != nil {
			t := *w.TemperatureF
			w.TemperatureF = &t
		}
		c.Weather = &w
	}
	c.PossessionShare = maps.Clone(g.PossessionShare)
	c.Turnovers = maps.Clone(g.Turnovers)
	return &c
}

// ScoreDifferential is team's score minus its opponent's; 0 for unknown teams.
func (g *GameState) ScoreDifferential(team string) int {
	switch team {
	case g.HomeTeam:
		return g.HomeScore - g.AwayScore
	case g.AwayTeam:
		return g.AwayScore - g.HomeScore
	default:
		return 0
	}
}

// Opponent returns the other team.
func (g *GameState) Opponent(team string) string {
	switch team {
	case g.HomeTeam:
		return g.AwayTeam
	case g.AwayTeam:
		return g.HomeTeam
	default:
		return ""
	}
}

// Possession returns team's time-of-possession share in [0,1].
func (g *GameState) Possession(team string) float64 {
	return g.PossessionShare[team]
}

// TurnoverDifferential is opponent turnovers minus team turnovers.
func (g *GameState) TurnoverDifferential(team string) int {
	return g.Turnovers[g.Opponent(team)] - g.Turnovers[team]
}

// AddScore credits points to team.
func (g *GameState) AddScore(team string, points int) {
	switch team {
	case g.HomeTeam:
		g.HomeScore += points
	case g.AwayTeam:
		g.AwayScore += points
	}
}
