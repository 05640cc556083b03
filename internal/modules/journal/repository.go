// Package journal records trades and equity samples in an in-process SQLite
// database for reporting. Contents live only as long as the process.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/utils"
)

// Default and maximum page sizes for list queries
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// EquityPoint is one sample of portfolio value
type EquityPoint struct {
	TakenAt        time.Time `json:"taken_at"`
	CashBalance    float64   `json:"cash_balance"`
	PositionsValue float64   `json:"positions_value"`
	TotalValue     float64   `json:"total_value"`
	OpenPositions  int       `json:"open_positions"`
}

// EquityFromSnapshot derives an equity sample from a portfolio snapshot
func EquityFromSnapshot(snapshot domain.PortfolioSnapshot, takenAt time.Time) EquityPoint {
	return EquityPoint{
		TakenAt:        takenAt,
		CashBalance:    snapshot.CashBalance,
		PositionsValue: snapshot.TotalValue - snapshot.CashBalance,
		TotalValue:     snapshot.TotalValue,
		OpenPositions:  len(snapshot.Positions),
	}
}

// TradeFilter narrows ListTrades
type TradeFilter struct {
	Symbol string
	Action domain.Action
	Limit  int
}

// Stats summarises the journal
type Stats struct {
	TotalTrades      int     `json:"total_trades"`
	BuyTrades        int     `json:"buy_trades"`
	SellTrades       int     `json:"sell_trades"`
	TradedVolume     float64 `json:"traded_volume"`
	MeanConfidence   float64 `json:"mean_confidence"`
	StdDevConfidence float64 `json:"stddev_confidence"`
	EquitySamples    int     `json:"equity_samples"`
	MeanEquity       float64 `json:"mean_equity"`
	StdDevEquity     float64 `json:"stddev_equity"`
	Return           float64 `json:"return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
}

// Repository handles journal database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

const tradesColumns = `id, executed_at, symbol, action, status, mode, amount, requested_amount, provider, confidence, reasoning`

// NewRepository creates a new journal repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "journal").Logger(),
	}
}

// RecordTrade inserts a trade together with the cash balance after it
func (r *Repository) RecordTrade(ctx context.Context, trade domain.Trade, cashAfter float64) error {
	query := `
		INSERT INTO trades
		(id, executed_at, symbol, action, status, mode, amount, requested_amount,
		 provider, confidence, reasoning, cash_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID,
		trade.Timestamp.UnixMilli(),
		trade.Symbol,
		string(trade.Action),
		string(trade.Status),
		string(trade.Mode),
		trade.Amount,
		trade.RequestedAmount,
		string(trade.Decision.Source),
		trade.Decision.Confidence,
		trade.Decision.Rationale,
		cashAfter,
	)
	if err != nil {
		return fmt.Errorf("failed to record trade %s: %w", trade.ID, err)
	}

	r.log.Debug().Str("trade_id", trade.ID).Str("symbol", trade.Symbol).Msg("Trade journaled")
	return nil
}

// RecordEquity inserts an equity sample
func (r *Repository) RecordEquity(ctx context.Context, point EquityPoint) error {
	query := `
		INSERT INTO equity_snapshots
		(taken_at, cash_balance, positions_value, total_value, open_positions)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		point.TakenAt.UnixMilli(),
		point.CashBalance,
		point.PositionsValue,
		point.TotalValue,
		point.OpenPositions,
	)
	if err != nil {
		return fmt.Errorf("failed to record equity snapshot: %w", err)
	}
	return nil
}

// ListTrades returns trades, most recent first
func (r *Repository) ListTrades(ctx context.Context, filter TradeFilter) ([]domain.Trade, error) {
	var where []string
	var args []interface{}
	if filter.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToLower(filter.Symbol))
	}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(filter.Action))
	}

	query := "SELECT " + tradesColumns + " FROM trades"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY executed_at DESC, rowid DESC LIMIT ?"
	args = append(args, clampLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

func scanTrade(rows *sql.Rows) (domain.Trade, error) {
	var trade domain.Trade
	var executedAt int64
	var action, status, mode, provider string

	err := rows.Scan(
		&trade.ID,
		&executedAt,
		&trade.Symbol,
		&action,
		&status,
		&mode,
		&trade.Amount,
		&trade.RequestedAmount,
		&provider,
		&trade.Decision.Confidence,
		&trade.Decision.Rationale,
	)
	if err != nil {
		return trade, err
	}

	trade.Timestamp = time.UnixMilli(executedAt).UTC()
	trade.Action = domain.Action(action)
	trade.Status = domain.TradeStatus(status)
	trade.Mode = domain.Mode(mode)
	trade.Decision.Action = trade.Action
	trade.Decision.Source = domain.DecisionSource(provider)
	return trade, nil
}

// ListEquity returns the most recent limit samples in chronological order
func (r *Repository) ListEquity(ctx context.Context, limit int) ([]EquityPoint, error) {
	query := `
		SELECT taken_at, cash_balance, positions_value, total_value, open_positions
		FROM (
			SELECT id, taken_at, cash_balance, positions_value, total_value, open_positions
			FROM equity_snapshots
			ORDER BY taken_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY taken_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list equity: %w", err)
	}
	defer rows.Close()

	points := make([]EquityPoint, 0)
	for rows.Next() {
		var point EquityPoint
		var takenAt int64
		if err := rows.Scan(&takenAt, &point.CashBalance, &point.PositionsValue, &point.TotalValue, &point.OpenPositions); err != nil {
			return nil, fmt.Errorf("failed to scan equity: %w", err)
		}
		point.TakenAt = time.UnixMilli(takenAt).UTC()
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity: %w", err)
	}

	return points, nil
}

// Stats computes trade and equity statistics over the whole journal
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	defer utils.OperationTimer("journal_stats", r.log)()

	var stats Stats

	rows, err := r.db.QueryContext(ctx, "SELECT action, amount, confidence FROM trades")
	if err != nil {
		return stats, fmt.Errorf("failed to query trades: %w", err)
	}
	var confidences []float64
	for rows.Next() {
		var action string
		var amount, confidence float64
		if err := rows.Scan(&action, &amount, &confidence); err != nil {
			rows.Close()
			return stats, fmt.Errorf("failed to scan trade: %w", err)
		}
		stats.TotalTrades++
		stats.TradedVolume += amount
		switch domain.Action(action) {
		case domain.ActionBuy:
			stats.BuyTrades++
		case domain.ActionSell:
			stats.SellTrades++
		}
		confidences = append(confidences, confidence)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return stats, fmt.Errorf("error iterating trades: %w", err)
	}

	equityRows, err := r.db.QueryContext(ctx, "SELECT total_value FROM equity_snapshots ORDER BY taken_at ASC, id ASC")
	if err != nil {
		return stats, fmt.Errorf("failed to query equity: %w", err)
	}
	var equity []float64
	for equityRows.Next() {
		var v float64
		if err := equityRows.Scan(&v); err != nil {
			equityRows.Close()
			return stats, fmt.Errorf("failed to scan equity: %w", err)
		}
		equity = append(equity, v)
	}
	err = equityRows.Err()
	equityRows.Close()
	if err != nil {
		return stats, fmt.Errorf("error iterating equity: %w", err)
	}

	stats.MeanConfidence, stats.StdDevConfidence = meanStdDev(confidences)
	stats.EquitySamples = len(equity)
	stats.MeanEquity, stats.StdDevEquity = meanStdDev(equity)
	if len(equity) > 1 && equity[0] != 0 {
		stats.Return = equity[len(equity)-1]/equity[0] - 1
	}
	stats.MaxDrawdown = maxDrawdown(equity)

	return stats, nil
}

// meanStdDev returns zeros instead of NaN for short series
func meanStdDev(values []float64) (float64, float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

// maxDrawdown is the largest peak-to-trough fall as a fraction of the peak
func maxDrawdown(values []float64) float64 {
	peak := 0.0
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
