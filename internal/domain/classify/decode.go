package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/fantasylive/internal/domain/model"
)

type wireUpdate struct {
	SourceName string          `json:"sourceName"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	Timestamp  json.RawMessage `json:"timestamp"`
}

// DecodeRaw parses one inbound message or a JSON array of them. Each message
// is stamped with arrivedAt. A message whose timestamp cannot be parsed keeps
// a zero Timestamp; classification decides whether that matters.
func DecodeRaw(body []byte, arrivedAt time.Time) ([]model.RawUpdate, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedUpdate)
	}

	var wires []wireUpdate
	if body[0] == '[' {
		if err := json.Unmarshal(body, &wires); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedUpdate, err)
		}
	} else {
		var w wireUpdate
		if err := json.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedUpdate, err)
		}
		wires = []wireUpdate{w}
	}

	out := make([]model.RawUpdate, 0, len(wires))
	for _, w := range wires {
		out = append(out, model.RawUpdate{
			Source:    w.SourceName,
			Type:      w.Type,
			Data:      w.Data,
			Timestamp: parseTimestamp(w.Timestamp),
			ArrivedAt: arrivedAt,
		})
	}
	return out, nil
}

// parseTimestamp accepts RFC3339 strings or unix epoch milliseconds.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts
		}
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}
