package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/events"
	"github.com/aristath/cryptopilot/internal/modules/analysis"
	"github.com/aristath/cryptopilot/internal/modules/portfolio"
)

func defaultCycleConfig() CycleConfig {
	return CycleConfig{
		AnalysisInterval:    time.Minute,
		ConfidenceThreshold: 0.7,
		MaxTradeAmount:      10.0,
		MinTradeAmount:      1.0,
		TradeCashFraction:   0.1,
		MaxAssetsPerCycle:   10,
	}
}

func newTestCycle(cfg CycleConfig, m MarketSource, d Decider, l Ledger, p Publisher, r TradeRecorder) *CycleScheduler {
	return NewCycleScheduler(cfg, m, d, l, p, r, zerolog.Nop())
}

func TestCycle_BuyScenario(t *testing.T) {
	ledger := portfolio.NewLedger(1000.0, domain.ModeDemo, zerolog.Nop())
	publisher := permissivePublisher()
	recorder := &memoryRecorder{}
	cycle := newTestCycle(defaultCycleConfig(),
		staticMarket(priced("bitcoin", 45000, 6.0)),
		analysis.NewEngine(nil, zerolog.Nop()),
		ledger, publisher, recorder)

	result, err := cycle.RunNow(context.Background())
	require.NoError(t, err)

	snap := ledger.Snapshot()
	assert.Equal(t, 990.0, snap.CashBalance)
	assert.Equal(t, 10.0, snap.Positions["bitcoin"])
	assert.Len(t, snap.Trades, 1)

	assert.Equal(t, 1, result.Analyzed)
	assert.Equal(t, 1, result.Trades)
	assert.Equal(t, 1000.0, result.TotalValue)
	assert.True(t, result.Forced)
	require.Len(t, recorder.trades, 1)

	publisher.AssertCalled(t, "PublishAssetUpdate", mock.MatchedBy(func(s domain.AssetSnapshot) bool {
		return s.Symbol == "bitcoin"
	}), mock.MatchedBy(func(d domain.Decision) bool {
		return d.Action == domain.ActionBuy && d.Confidence == 0.8
	}), true)
	publisher.AssertCalled(t, "PublishTrade", mock.Anything, 990.0)
	publisher.AssertNumberOfCalls(t, "PublishPortfolioSnapshot", 1)
	publisher.AssertCalled(t, "PublishCycle", mock.MatchedBy(func(d *events.CycleData) bool {
		return d.EventType() == events.CycleCompleted && d.Trades == 1
	}))
	assert.False(t, cycle.LastRun().IsZero())
	assert.Equal(t, StateIdle, cycle.State())
}

func TestCycle_HoldDoesNotTrade(t *testing.T) {
	ledger := portfolio.NewLedger(1000.0, domain.ModeDemo, zerolog.Nop())
	publisher := permissivePublisher()
	cycle := newTestCycle(defaultCycleConfig(),
		staticMarket(priced("bitcoin", 45000, 0.0)),
		analysis.NewEngine(nil, zerolog.Nop()),
		ledger, publisher, nil)

	_, err := cycle.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1000.0, ledger.CashBalance())
	assert.Empty(t, ledger.Snapshot().Trades)
	publisher.AssertCalled(t, "PublishAssetUpdate", mock.Anything, mock.Anything, false)
	publisher.AssertNotCalled(t, "PublishTrade", mock.Anything, mock.Anything)
}

func TestCycle_ThresholdAndSizing(t *testing.T) {
	tests := []struct {
		name       string
		balance    float64
		confidence float64
		wantTrade  bool
		wantAmount float64
	}{
		{"fraction of cash below cap", 50.0, 0.8, true, 5.0},
		{"cap below fraction", 1000.0, 0.8, true, 10.0},
		{"below confidence threshold", 1000.0, 0.69, false, 0},
		{"amount below minimum", 9.0, 0.8, false, 0},
		{"exactly at threshold", 1000.0, 0.7, true, 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := portfolio.NewLedger(tt.balance, domain.ModeDemo, zerolog.Nop())
			decider := &fakeDecider{DecideFunc: func(ctx context.Context, s domain.AssetSnapshot) domain.Decision {
				return domain.Decision{Action: domain.ActionBuy, Confidence: tt.confidence, Source: domain.SourceDemo}
			}}
			cycle := newTestCycle(defaultCycleConfig(), staticMarket(priced("ethereum", 3200, 1)), decider, ledger, permissivePublisher(), nil)

			result, err := cycle.RunNow(context.Background())
			require.NoError(t, err)

			trades := ledger.Snapshot().Trades
			if !tt.wantTrade {
				assert.Empty(t, trades)
				assert.Equal(t, 0, result.Trades)
				return
			}
			require.Len(t, trades, 1)
			assert.InDelta(t, tt.wantAmount, trades[0].Amount, 1e-9)
		})
	}
}

func TestCycle_SellWithoutPositionIsDeclined(t *testing.T) {
	ledger := portfolio.NewLedger(1000.0, domain.ModeDemo, zerolog.Nop())
	publisher := permissivePublisher()
	cycle := newTestCycle(defaultCycleConfig(),
		staticMarket(priced("dogecoin", 0.08, -9)),
		analysis.NewEngine(nil, zerolog.Nop()),
		ledger, publisher, nil)

	result, err := cycle.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Trades)
	assert.Equal(t, 1000.0, ledger.CashBalance())
	publisher.AssertCalled(t, "PublishAssetUpdate", mock.Anything, mock.Anything, false)
}

func TestCycle_CapsAssetsAndSkipsUnpriced(t *testing.T) {
	var snapshots []domain.AssetSnapshot
	for i := 0; i < 15; i++ {
		s := priced(fmt.Sprintf("coin-%02d", i), 1, 0)
		if i == 2 {
			s.HasPrice = false
		}
		snapshots = append(snapshots, s)
	}

	var decided []string
	decider := &fakeDecider{DecideFunc: func(ctx context.Context, s domain.AssetSnapshot) domain.Decision {
		decided = append(decided, s.Symbol)
		return domain.Decision{Action: domain.ActionHold, Confidence: 0.6}
	}}
	cfg := defaultCycleConfig()
	cfg.MaxAssetsPerCycle = 5

	cycle := newTestCycle(cfg, staticMarket(snapshots...), decider,
		portfolio.NewLedger(1000, domain.ModeDemo, zerolog.Nop()), permissivePublisher(), nil)

	result, err := cycle.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"coin-00", "coin-01", "coin-03", "coin-04"}, decided)
	assert.Equal(t, 4, result.Analyzed)
}

func TestCycle_EmptyMarketDataTerminates(t *testing.T) {
	market := &fakeMarket{
		universe: []string{"bitcoin"},
		FetchFunc: func(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot {
			return map[string]domain.AssetSnapshot{}
		},
	}
	publisher := permissivePublisher()
	cycle := newTestCycle(defaultCycleConfig(), market, analysis.NewEngine(nil, zerolog.Nop()),
		portfolio.NewLedger(1000, domain.ModeDemo, zerolog.Nop()), publisher, nil)

	_, err := cycle.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrNoMarketData)

	publisher.AssertNotCalled(t, "PublishAssetUpdate", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishPortfolioSnapshot", mock.Anything)
	publisher.AssertCalled(t, "PublishCycle", mock.MatchedBy(func(d *events.CycleData) bool {
		return d.EventType() == events.CycleFailed
	}))
	assert.True(t, cycle.LastRun().IsZero())
	assert.Equal(t, StateIdle, cycle.State())
}

func TestCycle_PanicKeepsEarlierTrades(t *testing.T) {
	ledger := portfolio.NewLedger(1000.0, domain.ModeDemo, zerolog.Nop())
	decider := &fakeDecider{DecideFunc: func(ctx context.Context, s domain.AssetSnapshot) domain.Decision {
		if s.Symbol == "ethereum" {
			panic("decider exploded")
		}
		return domain.Decision{Action: domain.ActionBuy, Confidence: 0.9, Source: domain.SourceDemo}
	}}
	cycle := newTestCycle(defaultCycleConfig(),
		staticMarket(priced("bitcoin", 1, 1), priced("ethereum", 1, 1), priced("solana", 1, 1)),
		decider, ledger, permissivePublisher(), nil)

	_, err := cycle.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decider exploded")

	snap := ledger.Snapshot()
	assert.Len(t, snap.Trades, 1)
	assert.Equal(t, 10.0, snap.Positions["bitcoin"])
	assert.Equal(t, StateIdle, cycle.State())

	_, err = cycle.RunNow(context.Background())
	assert.Error(t, err, "scheduler accepts new cycles after a fault")
}

func TestCycle_IntervalGate(t *testing.T) {
	var fetches atomic.Int32
	market := staticMarket(priced("bitcoin", 1, 0))
	inner := market.FetchFunc
	market.FetchFunc = func(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot {
		fetches.Add(1)
		return inner(ctx, symbols)
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cycle := newTestCycle(defaultCycleConfig(), market, analysis.NewEngine(nil, zerolog.Nop()),
		portfolio.NewLedger(1000, domain.ModeDemo, zerolog.Nop()), permissivePublisher(), nil)
	cycle.now = func() time.Time { return now }

	require.NoError(t, cycle.Run(context.Background()))
	assert.Equal(t, int32(1), fetches.Load())

	now = now.Add(30 * time.Second)
	require.NoError(t, cycle.Run(context.Background()))
	assert.Equal(t, int32(1), fetches.Load(), "interval not elapsed")

	now = now.Add(30 * time.Second)
	require.NoError(t, cycle.Run(context.Background()))
	assert.Equal(t, int32(2), fetches.Load())

	require.True(t, cycle.Force(), "force bypasses the interval")
	cycle.Wait()
	assert.Equal(t, int32(3), fetches.Load())
}

func TestCycle_ForceWhileRunningIsNoop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var fetches atomic.Int32

	market := &fakeMarket{
		universe: []string{"bitcoin"},
		FetchFunc: func(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot {
			if fetches.Add(1) == 1 {
				close(entered)
				<-release
			}
			return map[string]domain.AssetSnapshot{"bitcoin": priced("bitcoin", 45000, 6.0)}
		},
	}
	ledger := portfolio.NewLedger(1000.0, domain.ModeDemo, zerolog.Nop())
	cycle := newTestCycle(defaultCycleConfig(), market, analysis.NewEngine(nil, zerolog.Nop()),
		ledger, permissivePublisher(), nil)

	require.True(t, cycle.Force())
	<-entered
	assert.Equal(t, StateRunning, cycle.State())

	assert.False(t, cycle.Force())
	assert.False(t, cycle.Force())
	_, err := cycle.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrCycleRunning)
	assert.NoError(t, cycle.Run(context.Background()))

	close(release)
	cycle.Wait()

	assert.Equal(t, int32(1), fetches.Load())
	assert.Len(t, ledger.Snapshot().Trades, 1, "no double-counted trades")
	assert.Equal(t, StateIdle, cycle.State())
}

func TestCycle_JournalFailureDoesNotAbortCycle(t *testing.T) {
	ledger := portfolio.NewLedger(1000.0, domain.ModeDemo, zerolog.Nop())
	recorder := &memoryRecorder{err: fmt.Errorf("disk full")}
	cycle := newTestCycle(defaultCycleConfig(),
		staticMarket(priced("bitcoin", 45000, 6.0), priced("ethereum", 3200, 7.0)),
		analysis.NewEngine(nil, zerolog.Nop()),
		ledger, permissivePublisher(), recorder)

	result, err := cycle.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Trades)
}

func TestCycle_IntervalRecheckedAfterClaimingRun(t *testing.T) {
	var fetches atomic.Int32
	market := staticMarket(priced("bitcoin", 1, 0))
	inner := market.FetchFunc
	market.FetchFunc = func(ctx context.Context, symbols []string) map[string]domain.AssetSnapshot {
		fetches.Add(1)
		return inner(ctx, symbols)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cycle := newTestCycle(defaultCycleConfig(), market, analysis.NewEngine(nil, zerolog.Nop()),
		portfolio.NewLedger(1000, domain.ModeDemo, zerolog.Nop()), permissivePublisher(), nil)
	cycle.now = func() time.Time { return start }

	require.NoError(t, cycle.Run(context.Background()))
	require.Equal(t, int32(1), fetches.Load())

	// The first read sees an elapsed interval; every later read sees a cycle
	// that has just completed, as when a forced run finishes mid-check.
	var reads atomic.Int32
	cycle.now = func() time.Time {
		if reads.Add(1) == 1 {
			return start.Add(time.Minute)
		}
		return start
	}

	require.NoError(t, cycle.Run(context.Background()))
	assert.Equal(t, int32(1), fetches.Load(), "stale due check must not start a cycle")
	assert.Equal(t, StateIdle, cycle.State())

	cycle.now = func() time.Time { return start.Add(time.Minute) }
	require.NoError(t, cycle.Run(context.Background()))
	assert.Equal(t, int32(2), fetches.Load())
}

func TestCycle_CompletedEventUnchangedAfterEmit(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	manager := events.NewManager(bus, zerolog.Nop())

	var emitted *events.CycleData
	var durationAtEmit int64
	bus.Subscribe(events.CycleCompleted, func(event *events.Event) {
		emitted = event.Data.(*events.CycleData)
		durationAtEmit = emitted.DurationMs
	})

	// Each clock read advances one second
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cycle := newTestCycle(defaultCycleConfig(),
		staticMarket(priced("bitcoin", 45000, 6.0)),
		analysis.NewEngine(nil, zerolog.Nop()),
		portfolio.NewLedger(1000.0, domain.ModeDemo, zerolog.Nop()), manager, nil)
	cycle.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	result, err := cycle.RunNow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, emitted)

	assert.NotSame(t, result, emitted, "subscribers get their own copy")
	assert.Equal(t, durationAtEmit, emitted.DurationMs)
	assert.Equal(t, result.DurationMs, emitted.DurationMs)
	assert.Equal(t, result.CycleID, emitted.CycleID)
	assert.Positive(t, emitted.DurationMs)
}

func TestTradeAmount(t *testing.T) {
	assert.Equal(t, 10.0, TradeAmount(1000, 10, 0.1))
	assert.Equal(t, 5.0, TradeAmount(50, 10, 0.1))
	assert.Equal(t, 0.0, TradeAmount(0, 10, 0.1))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
}
