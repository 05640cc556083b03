package server

import (
	"sync/atomic"
	"time"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/scheduler"
)

type fakeCycle struct {
	forced  atomic.Int32
	running atomic.Bool
	lastRun time.Time
}

func (f *fakeCycle) Force() bool {
	f.forced.Add(1)
	return !f.running.Load()
}

func (f *fakeCycle) State() scheduler.State {
	if f.running.Load() {
		return scheduler.StateRunning
	}
	return scheduler.StateIdle
}

func (f *fakeCycle) LastRun() time.Time {
	return f.lastRun
}

type fakePortfolio struct {
	snapshot domain.PortfolioSnapshot
}

func (f *fakePortfolio) Snapshot() domain.PortfolioSnapshot {
	return f.snapshot
}

func samplePortfolio() *fakePortfolio {
	return &fakePortfolio{snapshot: domain.PortfolioSnapshot{
		CashBalance: 990,
		TotalValue:  1000,
		Positions:   map[string]float64{"bitcoin": 10},
		Trades:      []domain.Trade{},
		TotalTrades: 1,
		SuccessRate: 1,
	}}
}
