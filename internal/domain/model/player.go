package model

import (
	"slices"
	"time"
)

// Position is a roster position.
type Position string

// Positions.
const (
	PosQB   Position = "QB"
	PosRB   Position = "RB"
	PosWR   Position = "WR"
	PosTE   Position = "TE"
	PosK    Position = "K"
	PosDST  Position = "DST"
	PosFlex Position = "FLEX"
)

// Eligible reports whether a player at p may fill a slot.
func (p Position) Eligible(slot Position) bool {
	if slot == PosFlex {
		return p == PosRB || p == PosWR || p == PosTE
	}
	return p == slot
}

// InjuryStatus is the reported availability of a player.
type InjuryStatus string

// Injury statuses.
const (
	InjuryHealthy      InjuryStatus = "healthy"
	InjuryQuestionable InjuryStatus = "questionable"
	InjuryDoubtful     InjuryStatus = "doubtful"
	InjuryOut          InjuryStatus = "out"
)

// InjurySeverity grades an injury report.
type InjurySeverity int

// Severities.
const (
	SeverityNone InjurySeverity = iota
	SeverityMinor
	SeverityModerate
	SeveritySevere
)

// PerformanceMetrics are the derived 0..100 scores (Momentum is -50..50).
type PerformanceMetrics struct {
	Efficiency        float64 `json:"efficiency"`
	Explosiveness     float64 `json:"explosiveness"`
	Consistency       float64 `json:"consistency"`
	RedZoneEfficiency float64 `json:"redZoneEfficiency"`
	Clutch            float64 `json:"clutch"`
	Momentum          float64 `json:"momentum"`
}

// Projection is an end-of-game point estimate. It is replaced whole, never patched.
type Projection struct {
	CurrentPoints   float64   `json:"currentPoints"`
	RemainingPoints float64   `json:"remainingPoints"`
	FinalPoints     float64   `json:"finalPoints"`
	Floor           float64   `json:"floor"`
	Ceiling         float64   `json:"ceiling"`
	MostLikely      float64   `json:"mostLikely"`
	Confidence      float64   `json:"confidence"`
	ComputedAt      time.Time `json:"computedAt"`
}

// SituationalFactor is one multiplier that went into a projection.
type SituationalFactor struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	Reason     string  `json:"reason,omitempty"`
}

// MaxRecentFactors bounds PlayerState.Factors.
const MaxRecentFactors = 8

// MaxRecentGames bounds PlayerState.RecentGameTotals.
const MaxRecentGames = 10

// Quarters tracked per player; index 4 collects overtime.
const Quarters = 5

// PlayerState is the live state of one player.
type PlayerState struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Team          string              `json:"team"`
	Position      Position            `json:"position"`
	GameID        string              `json:"gameId"`
	Stats         StatLine            `json:"stats"`
	Metrics       PerformanceMetrics  `json:"metrics"`
	FantasyPoints float64             `json:"fantasyPoints"`
	Projection    *Projection         `json:"projection,omitempty"`
	Factors       []SituationalFactor `json:"factors,omitempty"`

	Injury         InjuryStatus   `json:"injury"`
	InjurySeverity InjurySeverity `json:"injurySeverity"`
	Active         bool           `json:"active"`

	Plays            int               `json:"plays"`
	RecentGameTotals []float64         `json:"recentGameTotals,omitempty"`
	QuarterPoints    [Quarters]float64 `json:"quarterPoints"`
	LongestPlay      int               `json:"longestPlay"`
	Plays20          int               `json:"plays20"`
	Plays40          int               `json:"plays40"`
	RedZoneVisits    int               `json:"redZoneVisits"`
	RedZoneScores    int               `json:"redZoneScores"`
	SeasonAverage    float64           `json:"seasonAverage,omitempty"`
	Sentiment        float64           `json:"sentiment,omitempty"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// NewPlayerState returns an active, healthy player.
func NewPlayerState(id string) *PlayerState {
	return &PlayerState{ID: id, Injury: InjuryHealthy, Active: true}
}

// Clone returns a deep copy.
func (p *PlayerState) Clone() *PlayerState {
	if p == nil {
		return nil
	}
	c := *p
	c.Stats = p.Stats.Clone()
	if p.Projection != nil {
		pr := *p.Projection
		c.Projection = &pr
	}
	c.Factors = slices.Clone(p.Factors)
	c.RecentGameTotals = slices.Clone(p.RecentGameTotals)
	return &c
}

// PushFactors appends fs keeping only the most recent MaxRecentFactors.
func (p *PlayerState) PushFactors(fs ...SituationalFactor) {
	p.Factors = append(p.Factors, fs...)
	if n := len(p.Factors); n > MaxRecentFactors {
		p.Factors = slices.Clone(p.Factors[n-MaxRecentFactors:])
	}
}

// SetRecentGameTotals replaces the completed-game history, keeping the most
// recent MaxRecentGames entries.
func (p *PlayerState) SetRecentGameTotals(totals []float64) {
	if n := len(totals); n > MaxRecentGames {
		totals = totals[n-MaxRecentGames:]
	}
	p.RecentGameTotals = slices.Clone(totals)
}

// StartGame moves the player to gameID. When the player was already in a
// different game, that game's points join RecentGameTotals and the per-game
// state starts over.
func (p *PlayerState) StartGame(gameID string) {
	if gameID == "" || gameID == p.GameID {
		return
	}
	if p.GameID != "" {
		p.SetRecentGameTotals(append(slices.Clone(p.RecentGameTotals), p.FantasyPoints))
		p.Stats = StatLine{}
		p.FantasyPoints = 0
		p.Projection = nil
		p.Factors = nil
		p.Plays = 0
		p.QuarterPoints = [Quarters]float64{}
		p.LongestPlay, p.Plays20, p.Plays40 = 0, 0, 0
		p.RedZoneVisits, p.RedZoneScores = 0, 0
	}
	p.GameID = gameID
}

// RecordPlay updates big-play counters for a play of the given length.
func (p *PlayerState) RecordPlay(yards int) {
	if yards > p.LongestPlay {
		p.LongestPlay = yards
	}
	if yards >= 20 {
		p.Plays20++
	}
	if yards >= 40 {
		p.Plays40++
	}
}

// AddQuarterPoints credits delta points to quarter q (1-based, >4 is overtime).
func (p *PlayerState) AddQuarterPoints(q int, delta float64) {
	if q < 1 {
		return
	}
	idx := min(q, Quarters) - 1
	p.QuarterPoints[idx] += delta
}

func (s InjurySeverity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	default:
		return "none"
	}
}

// ParseSeverity maps a feed severity label; unknown labels are SeverityNone.
func ParseSeverity(s string) InjurySeverity {
	switch s {
	case "minor", "mild", "low":
		return SeverityMinor
	case "moderate", "medium":
		return SeverityModerate
	case "severe", "major", "high":
		return SeveritySevere
	default:
		return SeverityNone
	}
}
