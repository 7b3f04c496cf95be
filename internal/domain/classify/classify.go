// Package classify turns raw feed messages into typed, prioritized updates.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/pkg/logger"
	"github.com/okian/fantasylive/pkg/metrics"
)

// Classifier validates raw updates and assigns kind and priority.
// It is safe for concurrent use.
type Classifier struct {
	newID func() string
	now   func() time.Time
	log   logger.Logger

	received   atomic.Int64
	malformed  atomic.Int64
	classified atomic.Int64
}

// Stats is a snapshot of classifier counters.
type Stats struct {
	Received   int64
	Malformed  int64
	Classified int64
}

// New creates a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		newID: uuid.NewString,
		now:   time.Now,
		log:   logger.Named("classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var kindAliases = map[string]model.Kind{
	"scoring_play":   model.KindScoringPlay,
	"touchdown":      model.KindScoringPlay,
	"score":          model.KindScoringPlay,
	"stat_delta":     model.KindStatDelta,
	"stats":          model.KindStatDelta,
	"stat_update":    model.KindStatDelta,
	"injury":         model.KindInjury,
	"injury_update":  model.KindInjury,
	"player_status":  model.KindInjury,
	"game_status":    model.KindGameStatus,
	"game_update":    model.KindGameStatus,
	"weather":        model.KindWeather,
	"weather_update": model.KindWeather,
	"lineup_change":  model.KindLineupChange,
	"depth_chart":    model.KindLineupChange,
}

// KindOf maps a feed type label to a kind. Unknown labels are Generic.
func KindOf(label string) model.Kind {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), "-", "_")
	if k, ok := kindAliases[norm]; ok {
		return k
	}
	return model.KindGeneric
}

// Classify produces exactly one update or an error wrapping ErrMalformedUpdate.
func (c *Classifier) Classify(ctx context.Context, raw model.RawUpdate) (u model.ClassifiedUpdate, err error) {
	c.received.Add(1)
	metrics.RecordUpdateReceived()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrMalformedUpdate, r)
		}
		if err != nil {
			c.malformed.Add(1)
			metrics.RecordUpdateMalformed()
			c.log.Debug(ctx, "update rejected",
				logger.String("source", raw.Source),
				logger.String("type", raw.Type),
				logger.Error(err))
			u = model.ClassifiedUpdate{}
		}
	}()

	u, err = c.classify(raw)
	if err != nil {
		return u, err
	}
	c.classified.Add(1)
	metrics.RecordUpdateClassified(string(u.Kind), u.Priority.String())
	return u, nil
}

func (c *Classifier) classify(raw model.RawUpdate) (model.ClassifiedUpdate, error) {
	if strings.TrimSpace(raw.Type) == "" {
		return model.ClassifiedUpdate{}, fmt.Errorf("%w: missing type", ErrMalformedUpdate)
	}
	data := strings.TrimSpace(string(raw.Data))
	if data == "" || data[0] != '{' {
		return model.ClassifiedUpdate{}, fmt.Errorf("%w: data must be a JSON object", ErrMalformedUpdate)
	}

	var ids struct {
		ID       string `json:"id"`
		UpdateID string `json:"updateId"`
	}
	if err := json.Unmarshal(raw.Data, &ids); err != nil {
		return model.ClassifiedUpdate{}, fmt.Errorf("%w: %w", ErrMalformedUpdate, err)
	}

	kind := KindOf(raw.Type)
	u := model.ClassifiedUpdate{
		Source:     raw.Source,
		Kind:       kind,
		Priority:   model.PriorityFor(kind),
		ReceivedAt: raw.ArrivedAt,
	}
	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = c.now()
	}

	if err := decodePayload(&u, raw.Data); err != nil {
		return model.ClassifiedUpdate{}, err
	}

	switch {
	case ids.ID != "":
		u.ID = ids.ID
	case ids.UpdateID != "":
		u.ID = ids.UpdateID
	default:
		u.ID = c.newID()
	}
	return u, nil
}

// Reject counts a message that failed before it could be classified, such
// as an envelope that is not valid JSON.
func (c *Classifier) Reject(ctx context.Context, err error) {
	c.received.Add(1)
	c.malformed.Add(1)
	metrics.RecordUpdateReceived()
	metrics.RecordUpdateMalformed()
	c.log.Debug(ctx, "message rejected", logger.Error(err))
}

// Stats returns the current counters.
func (c *Classifier) Stats() Stats {
	return Stats{
		Received:   c.received.Load(),
		Malformed:  c.malformed.Load(),
		Classified: c.classified.Load(),
	}
}
