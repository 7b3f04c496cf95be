package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/okian/fantasylive/internal/domain/model"
)

func decodePayload(u *model.ClassifiedUpdate, data json.RawMessage) error {
	var err error
	switch u.Kind {
	case model.KindScoringPlay:
		err = decodeScoringPlay(u, data)
	case model.KindStatDelta:
		err = decodeStatDelta(u, data)
	case model.KindInjury:
		err = decodeInjury(u, data)
	case model.KindGameStatus:
		err = decodeGameStatus(u, data)
	case model.KindWeather:
		err = decodeWeather(u, data)
	case model.KindLineupChange:
		err = decodeLineupChange(u, data)
	default:
		err = decodeGeneric(u, data)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedUpdate, u.Kind, err)
	}
	return nil
}

func requirePlayer(playerID string) error {
	if strings.TrimSpace(playerID) == "" {
		return errMissing("playerId")
	}
	return nil
}

func requireGame(gameID string) error {
	if strings.TrimSpace(gameID) == "" {
		return errMissing("gameId")
	}
	return nil
}

func errMissing(field string) error {
	return fmt.Errorf("missing %s", field)
}

// Bounds on numeric payload fields. A single message beyond them is a feed
// error, and letting it through can push a player's totals past float range.
const (
	maxStatValue  = 100000
	maxPlayYards  = 110
	maxGamePoints = 1000
	maxPlays      = 1000
)

func checkRange(field string, v, limit float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return fmt.Errorf("%s out of range: %g", field, v)
	}
	return nil
}

func checkStats(stats map[string]float64) error {
	for k, v := range stats {
		if err := checkRange("stats."+k, v, maxStatValue); err != nil {
			return err
		}
	}
	return nil
}

func checkGameTotals(totals []float64) error {
	for _, v := range totals {
		if err := checkRange("recentGameTotals", v, maxGamePoints); err != nil {
			return err
		}
	}
	return nil
}

func checkOptional(field string, v *float64, limit float64) error {
	if v == nil {
		return nil
	}
	return checkRange(field, *v, limit)
}

func decodeScoringPlay(u *model.ClassifiedUpdate, data json.RawMessage) error {
	var p model.ScoringPlayPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := requirePlayer(p.PlayerID); err != nil {
		return err
	}
	if err := requireGame(p.GameID); err != nil {
		return err
	}
	p.PlayType = model.ScoringPlayType(strings.ToLower(string(p.PlayType)))
	if p.PlayType.TeamPoints() == 0 {
		return fmt.Errorf("unknown playType %q", p.PlayType)
	}
	if p.Yards < 0 {
		return fmt.Errorf("negative yards %d", p.Yards)
	}
	if p.Yards > maxPlayYards {
		return fmt.Errorf("yards out of range: %d", p.Yards)
	}
	u.PlayerID, u.GameID, u.Payload = p.PlayerID, p.GameID, p
	return nil
}

func decodeStatDelta(u *model.ClassifiedUpdate, data json.RawMessage) error {
	var p model.StatDeltaPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := requirePlayer(p.PlayerID); err != nil {
		return err
	}
	if len(p.Stats) == 0 && p.Plays == 0 && len(p.RecentGameTotals) == 0 {
		return fmt.Errorf("empty stat delta")
	}
	if err := checkStats(p.Stats); err != nil {
		return err
	}
	if p.Plays < 0 || p.Plays > maxPlays {
		return fmt.Errorf("plays out of range: %d", p.Plays)
	}
	if p.LongestPlay < 0 || p.LongestPlay > maxPlayYards {
		return fmt.Errorf("longestPlay out of range: %d", p.LongestPlay)
	}
	if err := checkOptional("seasonAverage", p.SeasonAverage, maxGamePoints); err != nil {
		return err
	}
	if err := checkGameTotals(p.RecentGameTotals); err != nil {
		return err
	}
	p.Position = model.Position(strings.ToUpper(string(p.Position)))
	u.PlayerID, u.GameID, u.Payload = p.PlayerID, p.GameID, p
	return nil
}

var injuryAliases = map[string]model.InjuryStatus{
	"healthy":      model.InjuryHealthy,
	"active":       model.InjuryHealthy,
	"probable":     model.InjuryHealthy,
	"questionable": model.InjuryQuestionable,
	"doubtful":     model.InjuryDoubtful,
	"out":          model.InjuryOut,
	"ir":           model.InjuryOut,
	"inactive":     model.InjuryOut,
}

func decodeInjury(u *model.ClassifiedUpdate, data json.RawMessage) error {
	var w struct {
		GameID      string `json:"gameId"`
		PlayerID    string `json:"playerId"`
		Status      string `json:"status"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := requirePlayer(w.PlayerID); err != nil {
		return err
	}
	status, ok := injuryAliases[strings.ToLower(strings.TrimSpace(w.Status))]
	if !ok {
		return fmt.Errorf("unknown injury status %q", w.Status)
	}
	u.PlayerID, u.GameID = w.PlayerID, w.GameID
	u.Payload = model.InjuryPayload{
		GameID:      w.GameID,
		PlayerID:    w.PlayerID,
		Status:      status,
		Severity:    model.ParseSeverity(strings.ToLower(strings.TrimSpace(w.Severity))),
		Description: w.Description,
	}
	return nil
}

func decodeGameStatus(u *model.ClassifiedUpdate, data json.RawMessage) error {
	var p model.GameStatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := requireGame(p.GameID); err != nil {
		return err
	}
	p.Status = model.GameStatus(strings.ToLower(string(p.Status)))
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("unknown game status %q", p.Status)
	}
	if p.ElapsedSeconds < 0 || p.Quarter < 0 {
		return fmt.Errorf("negative clock")
	}
	u.GameID, u.Payload = p.GameID, p
	return nil
}

func decodeWeather(u *model.ClassifiedUpdate, data json.RawMessage) error {
	var p model.WeatherPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := requireGame(p.GameID); err != nil {
		return err
	}
	if p.WindMPH < 0 {
		return fmt.Errorf("negative wind %v", p.WindMPH)
	}
	p.Precipitation = strings.ToLower(strings.TrimSpace(p.Precipitation))
	u.GameID, u.Payload = p.GameID, p
	return nil
}

func decodeLineupChange(u *model.ClassifiedUpdate, data json.RawMessage) error {
	var w struct {
		model.LineupChangePayload
		Active *bool `json:"active"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p := w.LineupChangePayload
	if err := requirePlayer(p.PlayerID); err != nil {
		return err
	}
	if err := checkOptional("seasonAverage", p.SeasonAverage, maxGamePoints); err != nil {
		return err
	}
	if err := checkGameTotals(p.RecentGameTotals); err != nil {
		return err
	}
	p.Active = w.Active == nil || *w.Active
	p.Position = model.Position(strings.ToUpper(string(p.Position)))
	u.PlayerID, u.GameID, u.Payload = p.PlayerID, p.GameID, p
	return nil
}

func decodeGeneric(u *model.ClassifiedUpdate, data json.RawMessage) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	p := model.GenericPayload{Fields: fields}
	if v, ok := fields["playerId"].(string); ok {
		p.PlayerID = v
	}
	if v, ok := fields["gameId"].(string); ok {
		p.GameID = v
	}
	if v, ok := fields["sentiment"].(float64); ok {
		p.Sentiment = &v
	}
	u.PlayerID, u.GameID, u.Payload = p.PlayerID, p.GameID, p
	return nil
}
