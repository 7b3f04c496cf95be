package model

import "slices"

// StatLine is a player's cumulative box score for one game.
type StatLine struct {
	PassingYards        float64 `json:"passingYards"`
	PassingTouchdowns   int     `json:"passingTouchdowns"`
	Interceptions       int     `json:"interceptions"`
	RushingYards        float64 `json:"rushingYards"`
	RushingTouchdowns   int     `json:"rushingTouchdowns"`
	RushingAttempts     int     `json:"rushingAttempts"`
	Receptions          int     `json:"receptions"`
	Targets             int     `json:"targets"`
	ReceivingYards      float64 `json:"receivingYards"`
	ReceivingTouchdowns int     `json:"receivingTouchdowns"`
	FieldGoals          int     `json:"fieldGoals"`
	FieldGoalDistances  []int   `json:"fieldGoalDistances,omitempty"`
	ExtraPoints         int     `json:"extraPoints"`
	TwoPointConversions int     `json:"twoPointConversions"`
	Safeties            int     `json:"safeties"`
	DefensiveTouchdowns int     `json:"defensiveTouchdowns"`
}

// Add returns s plus d.
func (s StatLine) Add(d StatLine) StatLine {
	out := StatLine{
		PassingYards:        s.PassingYards + d.PassingYards,
		PassingTouchdowns:   s.PassingTouchdowns + d.PassingTouchdowns,
		Interceptions:       s.Interceptions + d.Interceptions,
		RushingYards:        s.RushingYards + d.RushingYards,
		RushingTouchdowns:   s.RushingTouchdowns + d.RushingTouchdowns,
		RushingAttempts:     s.RushingAttempts + d.RushingAttempts,
		Receptions:          s.Receptions + d.Receptions,
		Targets:             s.Targets + d.Targets,
		ReceivingYards:      s.ReceivingYards + d.ReceivingYards,
		ReceivingTouchdowns: s.ReceivingTouchdowns + d.ReceivingTouchdowns,
		FieldGoals:          s.FieldGoals + d.FieldGoals,
		ExtraPoints:         s.ExtraPoints + d.ExtraPoints,
		TwoPointConversions: s.TwoPointConversions + d.TwoPointConversions,
		Safeties:            s.Safeties + d.Safeties,
		DefensiveTouchdowns: s.DefensiveTouchdowns + d.DefensiveTouchdowns,
	}
	if len(s.FieldGoalDistances)+len(d.FieldGoalDistances) > 0 {
		out.FieldGoalDistances = append(slices.Clone(s.FieldGoalDistances), d.FieldGoalDistances...)
	}
	return out
}

// Clone returns a deep copy.
func (s StatLine) Clone() StatLine {
	s.FieldGoalDistances = slices.Clone(s.FieldGoalDistances)
	return s
}

// TotalYards is scrimmage plus passing yards.
func (s StatLine) TotalYards() float64 {
	return s.PassingYards + s.RushingYards + s.ReceivingYards
}

// Touchdowns counts every touchdown credited to the player.
func (s StatLine) Touchdowns() int {
	return s.PassingTouchdowns + s.RushingTouchdowns + s.ReceivingTouchdowns + s.DefensiveTouchdowns
}
