// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// RawUpdate is one inbound feed message before classification.
type RawUpdate struct {
	Source    string          `json:"sourceName"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	ArrivedAt time.Time       `json:"-"`
}

// Kind is the classified category of an update.
type Kind string

// Update kinds.
const (
	KindScoringPlay  Kind = "scoring_play"
	KindStatDelta    Kind = "stat_delta"
	KindInjury       Kind = "injury"
	KindGameStatus   Kind = "game_status"
	KindWeather      Kind = "weather"
	KindLineupChange Kind = "lineup_change"
	KindGeneric      Kind = "generic"
)

// Priority orders updates in the dispatch queue. Higher values drain first.
type Priority int

// Priorities, lowest first.
const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// PriorityFor returns the fixed priority of a kind.
func PriorityFor(k Kind) Priority {
	switch k {
	case KindInjury, KindScoringPlay:
		return PriorityCritical
	case KindStatDelta, KindLineupChange:
		return PriorityHigh
	case KindGameStatus, KindWeather:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ClassifiedUpdate is a typed, prioritized update. Payload holds one of the
// *Payload structs below matching Kind.
type ClassifiedUpdate struct {
	ID         string    `json:"id"`
	Source     string    `json:"sourceName"`
	Kind       Kind      `json:"kind"`
	Priority   Priority  `json:"priority"`
	GameID     string    `json:"gameId,omitempty"`
	PlayerID   string    `json:"playerId,omitempty"`
	Payload    any       `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
	Seq        uint64    `json:"seq"`
	Processed  bool      `json:"processed"`
}

// PartitionKey is the key a worker must hold exclusively while applying the update.
func (u *ClassifiedUpdate) PartitionKey() string {
	if u.PlayerID != "" {
		return "p:" + u.PlayerID
	}
	if u.GameID != "" {
		return "g:" + u.GameID
	}
	return "u:" + u.ID
}

// ScoringPlayType names the kind of score credited to a player.
type ScoringPlayType string

// Scoring play types.
const (
	PlayPassingTD   ScoringPlayType = "passing_td"
	PlayRushingTD   ScoringPlayType = "rushing_td"
	PlayReceivingTD ScoringPlayType = "receiving_td"
	PlayFieldGoal   ScoringPlayType = "field_goal"
	PlayExtraPoint  ScoringPlayType = "extra_point"
	PlayTwoPoint    ScoringPlayType = "two_point"
	PlaySafety      ScoringPlayType = "safety"
	PlayDefensiveTD ScoringPlayType = "defensive_td"
)

// TeamPoints is what the play adds to the scoring team's total.
func (t ScoringPlayType) TeamPoints() int {
	switch t {
	case PlayPassingTD, PlayRushingTD, PlayReceivingTD, PlayDefensiveTD:
		return 6
	case PlayFieldGoal:
		return 3
	case PlayTwoPoint, PlaySafety:
		return 2
	case PlayExtraPoint:
		return 1
	default:
		return 0
	}
}

// ScoringPlayPayload credits a score to a player and their team.
type ScoringPlayPayload struct {
	GameID   string          `json:"gameId"`
	PlayerID string          `json:"playerId"`
	Team     string          `json:"team"`
	PlayType ScoringPlayType `json:"playType"`
	Yards    int             `json:"yards"`
	Quarter  int             `json:"quarter"`
	RedZone  bool            `json:"redZone"`
}

// StatDeltaPayload adds incremental stats to a player.
type StatDeltaPayload struct {
	GameID           string             `json:"gameId"`
	PlayerID         string             `json:"playerId"`
	Name             string             `json:"name"`
	Team             string             `json:"team"`
	Position         Position           `json:"position"`
	Stats            map[string]float64 `json:"stats"`
	Plays            int                `json:"plays"`
	LongestPlay      int                `json:"longestPlay"`
	RedZone          bool               `json:"redZone"`
	Quarter          int                `json:"quarter"`
	SeasonAverage    *float64           `json:"seasonAverage,omitempty"`
	RecentGameTotals []float64          `json:"recentGameTotals,omitempty"`
}

// InjuryPayload reports a change of a player's injury status.
type InjuryPayload struct {
	GameID      string         `json:"gameId"`
	PlayerID    string         `json:"playerId"`
	Status      InjuryStatus   `json:"status"`
	Severity    InjurySeverity `json:"severity"`
	Description string         `json:"description"`
}

// GameStatusPayload carries clock, score and possession changes.
type GameStatusPayload struct {
	GameID          string             `json:"gameId"`
	Status          GameStatus         `json:"status"`
	Quarter         int                `json:"quarter"`
	ElapsedSeconds  int                `json:"elapsedSeconds"`
	HomeTeam        string             `json:"homeTeam"`
	AwayTeam        string             `json:"awayTeam"`
	HomeScore       *int               `json:"homeScore,omitempty"`
	AwayScore       *int               `json:"awayScore,omitempty"`
	PossessionShare map[string]float64 `json:"possessionShare,omitempty"`
	Turnovers       map[string]int     `json:"turnovers,omitempty"`
}

// WeatherPayload replaces a game's weather.
type WeatherPayload struct {
	GameID        string   `json:"gameId"`
	TemperatureF  *float64 `json:"temperatureF,omitempty"`
	WindMPH       float64  `json:"windMph"`
	Precipitation string   `json:"precipitation"`
	Conditions    string   `json:"conditions"`
}

// LineupChangePayload updates a player's roster slot and active flag.
type LineupChangePayload struct {
	GameID           string    `json:"gameId"`
	PlayerID         string    `json:"playerId"`
	Name             string    `json:"name"`
	Team             string    `json:"team"`
	Position         Position  `json:"position"`
	Active           bool      `json:"active"`
	SeasonAverage    *float64  `json:"seasonAverage,omitempty"`
	Sentiment        *float64  `json:"sentiment,omitempty"`
	RecentGameTotals []float64 `json:"recentGameTotals,omitempty"`
}

// GenericPayload keeps unrecognised messages. A playerId plus sentiment
// value is still applied to that player.
type GenericPayload struct {
	PlayerID  string         `json:"playerId,omitempty"`
	GameID    string         `json:"gameId,omitempty"`
	Sentiment *float64       `json:"sentiment,omitempty"`
	Fields    map[string]any `json:"fields"`
}
