package scheduler

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/events"
	"github.com/aristath/cryptopilot/internal/modules/journal"
)

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishAssetUpdate(snapshot domain.AssetSnapshot, decision domain.Decision, traded bool) {
	m.Called(snapshot, decision, traded)
}

func (m *MockPublisher) PublishPortfolioSnapshot(snapshot domain.PortfolioSnapshot) {
	m.Called(snapshot)
}

func (m *MockPublisher) PublishTrade(trade domain.Trade, cashBalance float64) {
	m.Called(trade, cashBalance)
}

func (m *MockPublisher) PublishCycle(data *events.CycleData) {
	m.Called(data)
}

// permissivePublisher accepts every publish call
func permissivePublisher() *MockPublisher {
	p := new(MockPublisher)
	p.On("PublishAssetUpdate", mock.Anything, mock.Anything, mock.Anything).Return()
	p.On("PublishPortfolioSnapshot", mock.Anything).Return()
	p.On("PublishTrade", mock.Anything, mock.Anything).Return()
	p.On("PublishCycle", mock.Anything).Return()
	return p
}

// fakeMarket is a func-field MarketSource
type fakeMarket struct {
	universe  []string
	FetchFunc func(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot
}

func (f *fakeMarket) Universe() []string {
	return f.universe
}

func (f *fakeMarket) Fetch(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot {
	return f.FetchFunc(ctx, symbols)
}

func staticMarket(snapshots ...domain.AssetSnapshot) *fakeMarket {
	m := &fakeMarket{}
	byID := make(map[string]domain.AssetSnapshot, len(snapshots))
	for _, s := range snapshots {
		m.universe = append(m.universe, s.Symbol)
		byID[s.Symbol] = s
	}
	m.FetchFunc = func(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot {
		out := make(map[string]domain.AssetSnapshot, len(byID))
		for k, v := range byID {
			out[k] = v
		}
		return out
	}
	return m
}

// fakeDecider is a func-field Decider
type fakeDecider struct {
	DecideFunc func(ctx context.Context, snapshot domain.AssetSnapshot) domain.Decision
}

func (f *fakeDecider) Source() domain.DecisionSource {
	return domain.SourceDemo
}

func (f *fakeDecider) Decide(ctx context.Context, snapshot domain.AssetSnapshot) domain.Decision {
	return f.DecideFunc(ctx, snapshot)
}

// memoryRecorder collects journaled trades and equity points
type memoryRecorder struct {
	mu     sync.Mutex
	trades []domain.Trade
	equity []journal.EquityPoint
	err    error
}

func (r *memoryRecorder) RecordTrade(ctx context.Context, trade domain.Trade, cashAfter float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trade)
	return r.err
}

func (r *memoryRecorder) RecordEquity(ctx context.Context, point journal.EquityPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.equity = append(r.equity, point)
	return nil
}

func priced(symbol string, price, change float64) domain.AssetSnapshot {
	return domain.AssetSnapshot{Symbol: symbol, Price: price, Change24h: change, HasPrice: true}
}
