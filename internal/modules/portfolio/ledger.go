// Package portfolio provides the in-memory portfolio ledger.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
)

// Ledger errors. A declined trade leaves the ledger untouched.
var (
	ErrInvalidAmount     = errors.New("trade amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient cash balance")
	ErrNoPosition        = errors.New("no open position")
	ErrUnknownAction     = errors.New("action does not trade")
)

// Ledger owns the authoritative portfolio state. Every mutation runs under a
// single lock; readers get deep copies.
type Ledger struct {
	mu          sync.RWMutex
	mode        domain.Mode
	cash        float64
	positions   map[string]float64
	trades      []domain.Trade
	totalTrades int
	totalValue  float64
	updatedAt   time.Time
	now         func() time.Time
	newID       func() string
	log         zerolog.Logger
}

// NewLedger creates a ledger holding startingBalance in cash
func NewLedger(startingBalance float64, mode domain.Mode, log zerolog.Logger) *Ledger {
	l := &Ledger{
		mode:      mode,
		cash:      startingBalance,
		positions: make(map[string]float64),
		trades:    make([]domain.Trade, 0),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		log:       log.With().Str("component", "ledger").Logger(),
	}
	l.totalValue = startingBalance
	l.updatedAt = l.now()
	return l
}

// Mode returns the execution mode trades are recorded under
func (l *Ledger) Mode() domain.Mode {
	return l.mode
}

// Apply executes a buy or sell and appends exactly one trade on success.
//
// Buy requires amount <= cash. Sell requires an open position and fills
// min(amount, position); the position is removed once it reaches zero.
func (l *Ledger) Apply(symbol string, action domain.Action, amount float64, decision domain.Decision) (domain.Trade, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.Trade{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	filled := amount
	switch action {
	case domain.ActionBuy:
		if amount > l.cash {
			return domain.Trade{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, amount, l.cash)
		}
		l.cash -= amount
		l.positions[symbol] += amount

	case domain.ActionSell:
		held, ok := l.positions[symbol]
		if !ok {
			return domain.Trade{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
		}
		filled = math.Min(amount, held)
		l.cash += filled
		remaining := held - filled
		if remaining <= 0 {
			delete(l.positions, symbol)
		} else {
			l.positions[symbol] = remaining
		}

	default:
		return domain.Trade{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	now := l.now()
	trade := domain.Trade{
		Timestamp:       now,
		ID:              l.newID(),
		Symbol:          symbol,
		Action:          action,
		Status:          domain.StatusForMode(l.mode),
		Mode:            l.mode,
		Decision:        decision,
		Amount:          filled,
		RequestedAmount: amount,
	}
	l.trades = append(l.trades, trade)
	l.totalTrades++
	l.recompute()
	l.updatedAt = now

	msg := "Trade executed"
	if trade.Status == domain.TradeStatusPending {
		msg = "Trade recorded as pending"
	}
	l.log.Info().
		Str("trade_id", trade.ID).
		Str("symbol", symbol).
		Str("action", action.Upper()).
		Float64("amount", filled).
		Str("provider", string(decision.Source)).
		Str("status", string(trade.Status)).
		Msg(msg)

	return trade, nil
}

// recompute derives totalValue from cash and positions. Caller holds mu.
func (l *Ledger) recompute() {
	total := l.cash
	for _, quantity := range l.positions {
		total += quantity
	}
	l.totalValue = total
}

// CashBalance returns the current cash balance
func (l *Ledger) CashBalance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// TotalValue returns cash plus the sum of all positions
func (l *Ledger) TotalValue() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalValue
}

// Snapshot returns a consistent deep copy of the portfolio
func (l *Ledger) Snapshot() domain.PortfolioSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]float64, len(l.positions))
	for symbol, quantity := range l.positions {
		positions[symbol] = quantity
	}
	trades := make([]domain.Trade, len(l.trades))
	copy(trades, l.trades)

	return domain.PortfolioSnapshot{
		UpdatedAt:   l.updatedAt,
		Positions:   positions,
		Trades:      trades,
		CashBalance: l.cash,
		TotalValue:  l.totalValue,
		SuccessRate: successRate(l.trades),
		TotalTrades: l.totalTrades,
	}
}

// successRate is the fraction of recorded trades that settled
func successRate(trades []domain.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	executed := 0
	for _, t := range trades {
		if t.Status == domain.TradeStatusExecuted {
			executed++
		}
	}
	return float64(executed) / float64(len(trades))
}
