package model

import "time"

// AlertState is the per-player alerting state.
type AlertState string

// Alert states.
const (
	StateNormal  AlertState = "normal"
	StateWatch   AlertState = "watch"
	StateAlerted AlertState = "alerted"
	StateExpired AlertState = "expired"
)

// AlertType says what raised an alert.
type AlertType string

// Alert types.
const (
	AlertProjection AlertType = "projection"
	AlertInjury     AlertType = "injury"
)

// Alert is an urgent notice about a player. Immutable once created.
type Alert struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"playerId"`
	Type      AlertType `json:"type"`
	Impact    float64   `json:"impact"`
	Critical  bool      `json:"critical"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Active reports whether the alert is unexpired at now.
func (a *Alert) Active(now time.Time) bool {
	return now.Before(a.ExpiresAt)
}

// TradeSignal flags a likely change in a player's market value.
type TradeSignal struct {
	ID          string    `json:"id"`
	PlayerID    string    `json:"playerId"`
	Impact      float64   `json:"impact"`
	ValueChange float64   `json:"valueChange"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Active reports whether the signal is unexpired at now.
func (t *TradeSignal) Active(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
