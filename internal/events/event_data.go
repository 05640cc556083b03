package events

import "github.com/aristath/cryptopilot/internal/domain"

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// StatusData is sent to every dashboard connection when it connects
type StatusData struct {
	Message    string                   `json:"message"`
	AIProvider domain.DecisionSource    `json:"ai_provider"`
	Mode       domain.Mode              `json:"mode"`
	Portfolio  domain.PortfolioSnapshot `json:"portfolio"`
}

// EventType returns the event type for StatusData
func (d *StatusData) EventType() EventType {
	return StatusSnapshot
}

// AssetAnalyzedData contains data for AssetAnalyzed events
type AssetAnalyzedData struct {
	Symbol     string                `json:"symbol"`
	Price      float64               `json:"price"`
	Change24h  float64               `json:"change_24h"`
	Decision   string                `json:"decision"`
	Confidence float64               `json:"confidence"`
	Reasoning  string                `json:"reasoning"`
	Provider   domain.DecisionSource `json:"provider"`
	Timestamp  string                `json:"timestamp"`
	Traded     bool                  `json:"traded"`
}

// EventType returns the event type for AssetAnalyzedData
func (d *AssetAnalyzedData) EventType() EventType {
	return AssetAnalyzed
}

// PortfolioUpdatedData wraps a full portfolio snapshot
type PortfolioUpdatedData struct {
	domain.PortfolioSnapshot
}

// EventType returns the event type for PortfolioUpdatedData
func (d *PortfolioUpdatedData) EventType() EventType {
	return PortfolioUpdated
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	domain.Trade
	CashBalance float64 `json:"cash_balance"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// CycleData describes one analysis cycle transition
type CycleData struct {
	CycleID    string  `json:"cycle_id"`
	Forced     bool    `json:"forced"`
	Analyzed   int     `json:"analyzed,omitempty"`
	Trades     int     `json:"trades,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	TotalValue float64 `json:"total_value,omitempty"`
	Error      string  `json:"error,omitempty"`
	eventType  EventType
}

// NewCycleData creates cycle data for the given lifecycle event
func NewCycleData(eventType EventType, cycleID string, forced bool) *CycleData {
	return &CycleData{eventType: eventType, CycleID: cycleID, Forced: forced}
}

// EventType returns the lifecycle event this data belongs to
func (d *CycleData) EventType() EventType {
	if d.eventType == "" {
		return CycleCompleted
	}
	return d.eventType
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
