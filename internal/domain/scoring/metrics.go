package scoring

import (
	"github.com/okian/fantasylive/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// MetricsInput is the per-player context the derived metrics read.
type MetricsInput struct {
	Stats                model.StatLine
	LongestPlay          int
	Plays20              int
	Plays40              int
	RedZoneVisits        int
	RedZoneScores        int
	RecentGameTotals     []float64
	QuarterPoints        [model.Quarters]float64
	Quarter              int
	ScoreDifferential    int
	TeamScoredRecently   bool
	PossessionShare      float64
	TurnoverDifferential int
	TrendingUp           bool
}

const (
	metricBase          = 50
	explosivenessBase   = 30
	momentumBaseline    = -25
	consistencyMinGames = 3
	closeGameMargin     = 7
	longPlayYards       = 30
)

// Metrics computes all derived performance metrics.
func Metrics(in MetricsInput) model.PerformanceMetrics {
	return model.PerformanceMetrics{
		Efficiency:        Efficiency(in),
		Explosiveness:     Explosiveness(in),
		Consistency:       Consistency(in.RecentGameTotals),
		RedZoneEfficiency: RedZoneEfficiency(in.RedZoneVisits, in.RedZoneScores),
		Clutch:            Clutch(in),
		Momentum:          Momentum(in),
	}
}

// Efficiency rewards yards per carry, yards per target and red-zone conversion.
func Efficiency(in MetricsInput) float64 {
	score := float64(metricBase)
	s := in.Stats
	if s.RushingAttempts > 0 && s.RushingYards/float64(s.RushingAttempts) > 4.5 {
		score += 20
	}
	if s.Targets > 0 && s.ReceivingYards/float64(s.Targets) > 8 {
		score += 15
	}
	if in.RedZoneVisits > 0 && float64(in.RedZoneScores)/float64(in.RedZoneVisits) > 0.5 {
		score += 15
	}
	return clamp(score, 0, 100)
}

// Explosiveness rewards big plays.
func Explosiveness(in MetricsInput) float64 {
	score := float64(explosivenessBase)
	if in.Plays20 > 0 {
		score += 25
	}
	if in.Plays40 > 0 {
		score += 30
	}
	if in.LongestPlay > longPlayYards {
		score += 15
	}
	return clamp(score, 0, 100)
}

// Consistency is 100 minus twice the population variance of recent game
// totals; 50 with fewer than three games.
func Consistency(totals []float64) float64 {
	if len(totals) < consistencyMinGames {
		return metricBase
	}
	return clamp(100-2*stat.PopVariance(totals, nil), 0, 100)
}

// RedZoneEfficiency is the red-zone scoring rate; 50 with no visits.
func RedZoneEfficiency(visits, scores int) float64 {
	if visits <= 0 {
		return metricBase
	}
	return clamp(float64(scores)/float64(visits)*100, 0, 100)
}

// Clutch rewards fourth-quarter production in close games.
func Clutch(in MetricsInput) float64 {
	score := float64(metricBase)
	played := min(max(in.Quarter, 0), 4)
	if played >= 4 && abs(in.ScoreDifferential) <= closeGameMargin {
		avg := stat.Mean(in.QuarterPoints[:played], nil)
		if in.QuarterPoints[3] > avg {
			score += 30
		}
	}
	if in.Quarter >= 4 && in.TrendingUp {
		score += 20
	}
	return clamp(score, 0, 100)
}

// Momentum is in [-50,50].
func Momentum(in MetricsInput) float64 {
	score := float64(momentumBaseline)
	if in.TeamScoredRecently {
		score += 30
	}
	if in.PossessionShare > possessionBonus {
		score += 20
	}
	if in.TurnoverDifferential > 0 {
		score += 25
	}
	return clamp(score, -50, 50)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
