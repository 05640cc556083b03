package scheduler

import (
	"context"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/events"
	"github.com/aristath/cryptopilot/internal/modules/journal"
)

// MarketSource provides the asset universe and fail-soft snapshots
type MarketSource interface {
	Universe() []string
	Fetch(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot
}

// Decider maps a snapshot to a decision and never fails
type Decider interface {
	Source() domain.DecisionSource
	Decide(ctx context.Context, snapshot domain.AssetSnapshot) domain.Decision
}

// Ledger is the portfolio state the cycle trades against
type Ledger interface {
	Apply(symbol string, action domain.Action, amount float64, decision domain.Decision) (domain.Trade, error)
	CashBalance() float64
	Snapshot() domain.PortfolioSnapshot
}

// Publisher is the notification sink for cycle results
type Publisher interface {
	PublishAssetUpdate(snapshot domain.AssetSnapshot, decision domain.Decision, traded bool)
	PublishPortfolioSnapshot(snapshot domain.PortfolioSnapshot)
	PublishTrade(trade domain.Trade, cashBalance float64)
	PublishCycle(data *events.CycleData)
}

// TradeRecorder journals executed trades
type TradeRecorder interface {
	RecordTrade(ctx context.Context, trade domain.Trade, cashAfter float64) error
}

// EquityRecorder journals portfolio value samples
type EquityRecorder interface {
	RecordEquity(ctx context.Context, point journal.EquityPoint) error
}
