// Package scoring holds the pure fantasy calculator: points, derived
// performance metrics, situational factors and end-of-game projections.
// Nothing here reads a clock or shared state; time is passed in.
package scoring

import (
	"math"
	"slices"
	"strings"

	"github.com/okian/fantasylive/internal/domain/model"
)

// Scoring weights (PPR).
const (
	PassingYardWeight     = 0.04
	PassingTDWeight       = 4.0
	InterceptionWeight    = -2.0
	RushingYardWeight     = 0.1
	RushingTDWeight       = 6.0
	ReceptionWeight       = 1.0
	ReceivingYardWeight   = 0.1
	ReceivingTDWeight     = 6.0
	FieldGoalWeight       = 3.0
	ExtraPointWeight      = 1.0
	TwoPointWeight        = 2.0
	SafetyWeight          = 2.0
	DefensiveTDWeight     = 6.0
	fieldGoalMidDistance  = 40
	fieldGoalLongDistance = 50
)

// Round1 rounds half-up to one decimal place.
func Round1(x float64) float64 {
	// the epsilon absorbs binary representation error such as 2.45 -> 2.4499999
	return math.Floor(x*10+0.5+1e-9) / 10
}

// FieldGoalPoints scores one made field goal by distance in yards.
func FieldGoalPoints(distance int) float64 {
	switch {
	case distance >= fieldGoalLongDistance:
		return 5
	case distance >= fieldGoalMidDistance:
		return 4
	default:
		return 3
	}
}

// FantasyPoints scores a stat line. Field goals with known distances are
// tiered; any without a distance score the flat weight.
func FantasyPoints(s model.StatLine) float64 {
	pts := s.PassingYards*PassingYardWeight +
		float64(s.PassingTouchdowns)*PassingTDWeight +
		float64(s.Interceptions)*InterceptionWeight +
		s.RushingYards*RushingYardWeight +
		float64(s.RushingTouchdowns)*RushingTDWeight +
		float64(s.Receptions)*ReceptionWeight +
		s.ReceivingYards*ReceivingYardWeight +
		float64(s.ReceivingTouchdowns)*ReceivingTDWeight +
		float64(s.ExtraPoints)*ExtraPointWeight +
		float64(s.TwoPointConversions)*TwoPointWeight +
		float64(s.Safeties)*SafetyWeight +
		float64(s.DefensiveTouchdowns)*DefensiveTDWeight

	tiered := min(len(s.FieldGoalDistances), max(s.FieldGoals, 0))
	for _, d := range s.FieldGoalDistances[:tiered] {
		pts += FieldGoalPoints(d)
	}
	pts += float64(s.FieldGoals-tiered) * FieldGoalWeight

	return Round1(pts)
}

func normStatKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(k, "_", ""), "-", ""))
}

var statSetters = map[string]func(*model.StatLine, float64){
	"passingyards":        func(s *model.StatLine, v float64) { s.PassingYards += v },
	"passingtouchdowns":   func(s *model.StatLine, v float64) { s.PassingTouchdowns += int(v) },
	"passingtds":          func(s *model.StatLine, v float64) { s.PassingTouchdowns += int(v) },
	"interceptions":       func(s *model.StatLine, v float64) { s.Interceptions += int(v) },
	"rushingyards":        func(s *model.StatLine, v float64) { s.RushingYards += v },
	"rushingtouchdowns":   func(s *model.StatLine, v float64) { s.RushingTouchdowns += int(v) },
	"rushingtds":          func(s *model.StatLine, v float64) { s.RushingTouchdowns += int(v) },
	"rushingattempts":     func(s *model.StatLine, v float64) { s.RushingAttempts += int(v) },
	"carries":             func(s *model.StatLine, v float64) { s.RushingAttempts += int(v) },
	"receptions":          func(s *model.StatLine, v float64) { s.Receptions += int(v) },
	"targets":             func(s *model.StatLine, v float64) { s.Targets += int(v) },
	"receivingyards":      func(s *model.StatLine, v float64) { s.ReceivingYards += v },
	"receivingtouchdowns": func(s *model.StatLine, v float64) { s.ReceivingTouchdowns += int(v) },
	"receivingtds":        func(s *model.StatLine, v float64) { s.ReceivingTouchdowns += int(v) },
	"fieldgoals":          func(s *model.StatLine, v float64) { s.FieldGoals += int(v) },
	"extrapoints":         func(s *model.StatLine, v float64) { s.ExtraPoints += int(v) },
	"twopointconversions": func(s *model.StatLine, v float64) { s.TwoPointConversions += int(v) },
	"safeties":            func(s *model.StatLine, v float64) { s.Safeties += int(v) },
	"defensivetouchdowns": func(s *model.StatLine, v float64) { s.DefensiveTouchdowns += int(v) },
	"returntouchdowns":    func(s *model.StatLine, v float64) { s.DefensiveTouchdowns += int(v) },
}

// StatLineFromMap builds a stat line from feed field names. Keys are matched
// case-insensitively with underscores ignored; unknown keys are returned so
// callers can log them. The result does not depend on map iteration order.
func StatLineFromMap(m map[string]float64) (model.StatLine, []string) {
	var (
		s       model.StatLine
		unknown []string
	)
	for k, v := range m {
		set, ok := statSetters[normStatKey(k)]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		set(&s, v)
	}
	slices.Sort(unknown)
	return s, unknown
}

// PlayStats is the stat delta credited to the player on a scoring play.
// Yardage arrives separately through stat deltas.
func PlayStats(t model.ScoringPlayType, yards int) model.StatLine {
	var s model.StatLine
	switch t {
	case model.PlayPassingTD:
		s.PassingTouchdowns = 1
	case model.PlayRushingTD:
		s.RushingTouchdowns = 1
	case model.PlayReceivingTD:
		s.ReceivingTouchdowns = 1
	case model.PlayFieldGoal:
		s.FieldGoals = 1
		if yards > 0 {
			s.FieldGoalDistances = []int{yards}
		}
	case model.PlayExtraPoint:
		s.ExtraPoints = 1
	case model.PlayTwoPoint:
		s.TwoPointConversions = 1
	case model.PlaySafety:
		s.Safeties = 1
	case model.PlayDefensiveTD:
		s.DefensiveTouchdowns = 1
	}
	return s
}
