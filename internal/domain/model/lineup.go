package model

import (
	"slices"
	"time"
)

// LineupSlot is one starting position in a lineup.
type LineupSlot struct {
	Slot     Position `json:"slot"`
	PlayerID string   `json:"playerId"`
}

// Lineup is a fantasy roster tracked for swap recommendations.
type Lineup struct {
	ID        string       `json:"id"`
	Starters  []LineupSlot `json:"starters"`
	Bench     []string     `json:"bench"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy.
func (l *Lineup) Clone() *Lineup {
	if l == nil {
		return nil
	}
	c := *l
	c.Starters = slices.Clone(l.Starters)
	c.Bench = slices.Clone(l.Bench)
	return &c
}

// Starts reports whether playerID is in a starting slot.
func (l *Lineup) Starts(playerID string) bool {
	return slices.ContainsFunc(l.Starters, func(s LineupSlot) bool { return s.PlayerID == playerID })
}

// Alternative is a bench player suggested for a vacated slot.
type Alternative struct {
	PlayerID       string   `json:"playerId"`
	Name           string   `json:"name"`
	Position       Position `json:"position"`
	ProjectedFinal float64  `json:"projectedFinal"`
	Floor          float64  `json:"floor"`
	Ceiling        float64  `json:"ceiling"`
}

// SlotRecommendation ranks replacements for one alerted starter.
type SlotRecommendation struct {
	Slot         Position      `json:"slot"`
	PlayerID     string        `json:"playerId"`
	Reason       string        `json:"reason"`
	Alternatives []Alternative `json:"alternatives"`
}

// LineupOptimization is the latest swap advice for a lineup.
type LineupOptimization struct {
	LineupID        string               `json:"lineupId"`
	Recommendations []SlotRecommendation `json:"recommendations"`
	CreatedAt       time.Time            `json:"createdAt"`
}
