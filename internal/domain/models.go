// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"
)

// Action is the trade direction produced by a decision
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// ParseAction normalizes free-form input to an Action. Anything unknown is Hold.
func ParseAction(s string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy
	case ActionSell:
		return ActionSell
	default:
		return ActionHold
	}
}

// Upper returns the action as shown on the dashboard (BUY/SELL/HOLD)
func (a Action) Upper() string {
	return strings.ToUpper(string(a))
}

// DecisionSource identifies which strategy produced a decision
type DecisionSource string

const (
	SourceDemo   DecisionSource = "demo"
	SourceOpenAI DecisionSource = "openai" // provider A
	SourceClaude DecisionSource = "claude" // provider B
)

// Valid reports whether s is a known decision source
func (s DecisionSource) Valid() bool {
	switch s {
	case SourceDemo, SourceOpenAI, SourceClaude:
		return true
	}
	return false
}

// Mode is the execution mode of the ledger
type Mode string

const (
	ModeDemo  Mode = "demo"
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	switch m {
	case ModeDemo, ModePaper, ModeLive:
		return true
	}
	return false
}

// TradeStatus is the settlement state recorded on a trade
type TradeStatus string

const (
	TradeStatusExecuted TradeStatus = "executed"
	TradeStatusPending  TradeStatus = "pending"
)

// StatusForMode returns the status a trade gets under the given mode.
// Only demo mode settles immediately; other modes never reach a broker.
func StatusForMode(m Mode) TradeStatus {
	if m == ModeDemo {
		return TradeStatusExecuted
	}
	return TradeStatusPending
}

// AssetSnapshot is a point-in-time market reading for one asset
type AssetSnapshot struct {
	FetchedAt time.Time `json:"fetched_at"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	Volume24h float64   `json:"volume_24h"`
	MarketCap float64   `json:"market_cap"`
	HasPrice  bool      `json:"-"`
}

// Priced reports whether the snapshot carries a usable price
func (s AssetSnapshot) Priced() bool {
	return s.HasPrice && s.Price >= 0
}

// Decision is the outcome of analysing one snapshot
type Decision struct {
	Action     Action         `json:"decision"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `json:"reasoning"`
	Source     DecisionSource `json:"provider"`
}

// Actionable reports whether the decision should reach the ledger
func (d Decision) Actionable(threshold float64) bool {
	return d.Action != ActionHold && d.Confidence >= threshold
}

// Trade is an append-only ledger record
type Trade struct {
	Timestamp       time.Time   `json:"timestamp"`
	ID              string      `json:"id"`
	Symbol          string      `json:"symbol"`
	Action          Action      `json:"action"`
	Status          TradeStatus `json:"status"`
	Mode            Mode        `json:"type"`
	Decision        Decision    `json:"decision"`
	Amount          float64     `json:"amount"`
	RequestedAmount float64     `json:"requested_amount"`
}

// PortfolioSnapshot is a consistent copy of the ledger state
type PortfolioSnapshot struct {
	UpdatedAt   time.Time          `json:"updated_at"`
	Positions   map[string]float64 `json:"positions"`
	Trades      []Trade            `json:"trades"`
	CashBalance float64            `json:"cash_balance"`
	TotalValue  float64            `json:"total_value"`
	SuccessRate float64            `json:"success_rate"`
	TotalTrades int                `json:"total_trades"`
}
