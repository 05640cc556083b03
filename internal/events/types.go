// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Dashboard events (names match what the dashboard listens for)
	StatusSnapshot   EventType = "status"
	AssetAnalyzed    EventType = "crypto_analysis"
	PortfolioUpdated EventType = "portfolio_update"

	// Internal lifecycle events
	TradeExecuted  EventType = "TRADE_EXECUTED"
	CycleStarted   EventType = "CYCLE_STARTED"
	CycleCompleted EventType = "CYCLE_COMPLETED"
	CycleFailed    EventType = "CYCLE_FAILED"
	ErrorOccurred  EventType = "ERROR_OCCURRED"
)

// StreamTypes lists every event type forwarded to dashboard connections
var StreamTypes = []EventType{
	AssetAnalyzed,
	PortfolioUpdated,
	TradeExecuted,
	CycleStarted,
	CycleCompleted,
	CycleFailed,
	ErrorOccurred,
}

// Event represents a system event with typed data
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
	Module    string    `json:"module"`
}
