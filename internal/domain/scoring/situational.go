package scoring

import (
	"github.com/okian/fantasylive/internal/domain/model"
)

// Situation is the game context a projection is adjusted for.
type Situation struct {
	Position          model.Position
	ScoreDifferential int
	Weather           *model.Weather
	RedZoneVisits     int
	PossessionShare   float64
	Sentiment         float64
	Momentum          float64
}

const (
	blowoutMargin      = 10
	qbTrailingMargin   = 7
	qbLeadingMargin    = 14
	highWindMPH        = 15
	redZoneVisitsBonus = 2
	possessionBonus    = 0.6
)

// Factors returns the non-neutral multipliers that apply to s. Their product
// scales remaining points.
func (c *Calculator) Factors(s Situation) []model.SituationalFactor {
	var out []model.SituationalFactor
	add := func(name string, m float64, reason string) {
		if m != 1 {
			out = append(out, model.SituationalFactor{Name: name, Multiplier: m, Reason: reason})
		}
	}

	add("game_script", gameScript(s.Position, s.ScoreDifferential), "score differential")

	if c.features.Weather && s.Weather != nil {
		add("wind", windFactor(s.Position, s.Weather), "wind above 15mph")
		add("precipitation", precipitationFactor(s.Position, s.Weather), s.Weather.Precipitation)
		if s.Position == model.PosK && s.Weather.Freezing() {
			add("cold", 0.9, "below freezing")
		}
	}

	if s.RedZoneVisits > redZoneVisitsBonus {
		add("red_zone", 1.1, "more than two red-zone visits")
	}
	if s.PossessionShare > possessionBonus {
		add("possession", 1.05, "time of possession above 60%")
	}

	if c.features.Sentiment && s.Sentiment != 0 {
		add("sentiment", 1+0.05*clamp(s.Sentiment, -1, 1), "news sentiment")
	}
	if c.features.Predictive && s.Momentum != 0 {
		add("momentum", 1+clamp(s.Momentum, -50, 50)/500, "momentum model")
	}
	return out
}

// Multiplier is the product of fs; 1.0 for none.
func Multiplier(fs []model.SituationalFactor) float64 {
	m := 1.0
	for _, f := range fs {
		m *= f.Multiplier
	}
	return m
}

func gameScript(pos model.Position, diff int) float64 {
	switch pos {
	case model.PosQB:
		switch {
		case diff < -qbTrailingMargin:
			return 1.1
		case diff > qbLeadingMargin:
			return 0.9
		}
	case model.PosRB:
		switch {
		case diff > blowoutMargin:
			return 1.2
		case diff < -blowoutMargin:
			return 0.8
		}
	case model.PosWR, model.PosTE:
		switch {
		case diff > blowoutMargin:
			return 0.8
		case diff < -blowoutMargin:
			return 1.2
		}
	}
	return 1
}

func windFactor(pos model.Position, w *model.Weather) float64 {
	if w.WindMPH <= highWindMPH {
		return 1
	}
	switch pos {
	case model.PosQB, model.PosWR:
		return 0.9
	case model.PosRB:
		return 1.05
	}
	return 1
}

func precipitationFactor(pos model.Position, w *model.Weather) float64 {
	if !w.Precipitating() {
		return 1
	}
	if pos == model.PosRB {
		return 1.1
	}
	return 0.95
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
