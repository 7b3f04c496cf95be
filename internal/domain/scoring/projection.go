package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/fantasylive/internal/domain/model"
)

const (
	gameSeconds        = 3600
	minProgress        = 0.1
	questionableFactor = 0.85
	floorFactor        = 0.7
	ceilingFactor      = 1.4
	baseConfidence     = 70
	invariantTolerance = 1e-6
)

// ProjectionInput is everything a projection depends on.
type ProjectionInput struct {
	Situation
	CurrentPoints  float64
	ElapsedSeconds int
	Quarter        int
	Plays          int
	Injury         model.InjuryStatus
	Active         bool
	SeasonAverage  float64
	Now            time.Time
}

// Progress is the fraction of regulation played, in [0,1].
func Progress(elapsedSeconds int) float64 {
	return min(1, max(0, float64(elapsedSeconds))/gameSeconds)
}

// Project extrapolates end-of-game points from in-game pace and returns the
// projection with the factors that shaped it.
func (c *Calculator) Project(in ProjectionInput) (model.Projection, []model.SituationalFactor) {
	progress := Progress(in.ElapsedSeconds)
	current := Round1(in.CurrentPoints)

	pace := current / max(minProgress, progress)
	remaining := max(0, pace*(1-progress))

	if c.baselineBlend && in.SeasonAverage > 0 {
		baseline := in.SeasonAverage * (1 - progress)
		remaining = progress*remaining + (1-progress)*baseline
	}

	factors := c.Factors(in.Situation)
	remaining *= Multiplier(factors)

	if !in.Active || in.Injury == model.InjuryOut {
		remaining = 0
		factors = append(factors, model.SituationalFactor{Name: "inactive", Multiplier: 0, Reason: string(in.Injury)})
	}

	remaining = Round1(remaining)
	final := Round1(current + remaining)

	if in.Injury == model.InjuryQuestionable && in.Active && final > current {
		final = max(current, Round1(final*questionableFactor))
		remaining = Round1(final - current)
		factors = append(factors, model.SituationalFactor{Name: "questionable", Multiplier: questionableFactor, Reason: "injury status"})
	}

	lo, hi := Round1(final*floorFactor), Round1(final*ceilingFactor)
	p := model.Projection{
		CurrentPoints:   current,
		RemainingPoints: remaining,
		FinalPoints:     final,
		Floor:           min(lo, hi),
		Ceiling:         max(lo, hi),
		MostLikely:      final,
		Confidence:      confidence(in),
		ComputedAt:      in.Now,
	}
	return p, factors
}

func confidence(in ProjectionInput) float64 {
	c := float64(baseConfidence)
	if in.Plays > 10 {
		c += 20
	}
	if in.Quarter >= 3 {
		c += 10
	}
	if in.Weather.Clear() {
		c += 5
	}
	return clamp(c, 0, 100)
}

// CheckProjection verifies the projection invariants.
func CheckProjection(p model.Projection) error {
	for _, v := range []float64{p.CurrentPoints, p.RemainingPoints, p.FinalPoints, p.Floor, p.Ceiling} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrStateCorruption)
		}
	}
	switch {
	case math.Abs(p.FinalPoints-(p.CurrentPoints+p.RemainingPoints)) > invariantTolerance:
		return fmt.Errorf("%w: final %.1f != current %.1f + remaining %.1f",
			ErrStateCorruption, p.FinalPoints, p.CurrentPoints, p.RemainingPoints)
	case p.Floor > p.MostLikely || p.MostLikely > p.Ceiling:
		return fmt.Errorf("%w: floor %.1f, most likely %.1f, ceiling %.1f out of order",
			ErrStateCorruption, p.Floor, p.MostLikely, p.Ceiling)
	case p.Confidence < 0 || p.Confidence > 100:
		return fmt.Errorf("%w: confidence %.1f", ErrStateCorruption, p.Confidence)
	}
	return nil
}
