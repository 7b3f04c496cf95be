// Package events carries typed outbound events from the engine to its
// consumers.
package events

import "time"

// Type names an outbound event.
type Type string

// Event types.
const (
	TypeScoringPlay              Type = "scoringPlay"
	TypePlayerUpdate             Type = "playerUpdate"
	TypeInjuryAlert              Type = "injuryAlert"
	TypeWeatherChange            Type = "weatherChange"
	TypeTradeAlert               Type = "tradeAlert"
	TypeUrgentAlert              Type = "urgentAlert"
	TypeLineupOptimizationNeeded Type = "lineupOptimizationNeeded"
	TypePerformanceUpdate        Type = "performanceUpdate"
)

// Event is one outbound notification. Data holds the event's view value,
// for example a types.PlayerUpdate or a model.Alert.
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	PlayerID string    `json:"playerId,omitempty"`
	GameID   string    `json:"gameId,omitempty"`
	Data     any       `json:"data"`
	At       time.Time `json:"at"`
}
