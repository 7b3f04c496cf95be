// Package types contains read-model views returned by the engine's query API.
package types

import (
	"time"

	"github.com/okian/fantasylive/internal/domain/model"
)

// PlayerUpdate is the queryable view of one player.
type PlayerUpdate struct {
	Player       *model.PlayerState `json:"player"`
	AlertState   model.AlertState   `json:"alertState"`
	ActiveAlerts []model.Alert      `json:"activeAlerts,omitempty"`
	TradeSignal  *model.TradeSignal `json:"tradeSignal,omitempty"`
}

// FeedStatus describes one feed listener.
type FeedStatus struct {
	URL           string    `json:"url"`
	Connected     bool      `json:"connected"`
	Stale         bool      `json:"stale"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	Reconnects    int64     `json:"reconnects"`
}

// PerformanceMetrics aggregates engine counters for the performanceUpdate
// event and the stats endpoint.
type PerformanceMetrics struct {
	TotalReceived    int64 `json:"totalReceived"`
	Malformed        int64 `json:"malformed"`
	Classified       int64 `json:"classified"`
	Processed        int64 `json:"processed"`
	Duplicates       int64 `json:"duplicates"`
	ProcessingErrors int64 `json:"processingErrors"`
	StateCorruptions int64 `json:"stateCorruptions"`
	Deferred         int64 `json:"deferred"`
	Dropped          int64 `json:"dropped"`
	EventsDropped    int64 `json:"eventsDropped"`

	QueueDepth    int     `json:"queueDepth"`
	QueueCapacity int     `json:"queueCapacity"`
	Workers       int     `json:"workers"`
	UpdateHz      int     `json:"updateHz"`
	Ticks         int64   `json:"ticks"`
	AvgTickMs     float64 `json:"avgTickMs"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`

	Players            int `json:"players"`
	Games              int `json:"games"`
	ActiveGames        int `json:"activeGames"`
	ActiveAlerts       int `json:"activeAlerts"`
	ActiveTradeSignals int `json:"activeTradeSignals"`

	Paused        bool         `json:"paused"`
	CacheStrategy string       `json:"cacheStrategy"`
	Feeds         []FeedStatus `json:"feeds,omitempty"`
	StaleFeeds    int          `json:"staleFeeds"`
	Uptime        string       `json:"uptime"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Stale reports whether any feed has gone quiet.
func (m PerformanceMetrics) Stale() bool {
	return m.StaleFeeds > 0
}
