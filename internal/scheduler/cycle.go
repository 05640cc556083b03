package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/events"
	"github.com/aristath/cryptopilot/internal/modules/market"
	"github.com/aristath/cryptopilot/internal/modules/portfolio"
	"github.com/aristath/cryptopilot/pkg/id"
)

// State of the cycle scheduler
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Cycle errors
var (
	ErrCycleRunning = errors.New("analysis cycle already running")
	ErrNoMarketData = errors.New("no market data available")
)

// CycleConfig holds the trading policy applied by each cycle
type CycleConfig struct {
	AnalysisInterval    time.Duration
	ConfidenceThreshold float64
	MaxTradeAmount      float64
	MinTradeAmount      float64
	TradeCashFraction   float64
	MaxAssetsPerCycle   int
}

// CycleScheduler runs fetch, decide, apply and publish passes over the
// universe. At most one cycle runs at a time; triggers that arrive while a
// cycle is running are dropped.
type CycleScheduler struct {
	cfg       CycleConfig
	market    MarketSource
	decider   Decider
	ledger    Ledger
	publisher Publisher
	recorder  TradeRecorder

	state   atomic.Int32
	mu      sync.Mutex
	lastRun time.Time
	forced  sync.WaitGroup

	now func() time.Time
	log zerolog.Logger
}

// NewCycleScheduler creates a new cycle scheduler. recorder may be nil.
func NewCycleScheduler(
	cfg CycleConfig,
	marketSource MarketSource,
	decider Decider,
	ledger Ledger,
	publisher Publisher,
	recorder TradeRecorder,
	log zerolog.Logger,
) *CycleScheduler {
	if cfg.MaxAssetsPerCycle <= 0 {
		cfg.MaxAssetsPerCycle = 10
	}
	return &CycleScheduler{
		cfg:       cfg,
		market:    marketSource,
		decider:   decider,
		ledger:    ledger,
		publisher: publisher,
		recorder:  recorder,
		now:       time.Now,
		log:       log.With().Str("component", "cycle_scheduler").Logger(),
	}
}

// State returns the current scheduler state
func (s *CycleScheduler) State() State {
	return State(s.state.Load())
}

// LastRun returns when the last cycle completed; zero if none has
func (s *CycleScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *CycleScheduler) due() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun.IsZero() || s.now().Sub(s.lastRun) >= s.cfg.AnalysisInterval
}

func (s *CycleScheduler) markRun(t time.Time) {
	s.mu.Lock()
	s.lastRun = t
	s.mu.Unlock()
}

// Run executes a cycle if the analysis interval has elapsed and no cycle is
// running. Skipped attempts return nil.
func (s *CycleScheduler) Run(ctx context.Context) error {
	if !s.due() {
		return nil
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		s.log.Debug().Msg("Cycle already running, skipping")
		return nil
	}
	defer s.state.Store(int32(StateIdle))

	// A forced cycle may have finished between the check and the swap
	if !s.due() {
		return nil
	}

	_, err := s.execute(ctx, false)
	return err
}

// RunNow executes a cycle synchronously, ignoring the analysis interval
func (s *CycleScheduler) RunNow(ctx context.Context) (*events.CycleData, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrCycleRunning
	}
	defer s.state.Store(int32(StateIdle))

	s.markRun(time.Time{})
	return s.execute(ctx, true)
}

// Force starts a cycle in the background and returns immediately. It
// reports whether a cycle was started; while one is running it does nothing.
func (s *CycleScheduler) Force() bool {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		s.log.Info().Msg("Forced analysis ignored, cycle already running")
		return false
	}

	s.markRun(time.Time{})
	s.log.Info().Msg("Forcing analysis")

	s.forced.Add(1)
	go func() {
		defer s.forced.Done()
		defer s.state.Store(int32(StateIdle))
		if _, err := s.execute(context.Background(), true); err != nil && !errors.Is(err, ErrNoMarketData) {
			s.log.Error().Err(err).Msg("Forced cycle failed")
		}
	}()
	return true
}

// Wait blocks until background cycles started by Force have finished
func (s *CycleScheduler) Wait() {
	s.forced.Wait()
}

// execute runs one cycle. The caller owns the Running state. Panics are
// converted to errors; trades applied before a fault are kept.
func (s *CycleScheduler) execute(ctx context.Context, forced bool) (result *events.CycleData, err error) {
	cycleID := id.New()
	started := s.now()
	log := s.log.With().Str("cycle_id", cycleID).Logger()

	result = events.NewCycleData(events.CycleCompleted, cycleID, forced)
	s.publisher.PublishCycle(events.NewCycleData(events.CycleStarted, cycleID, forced))
	log.Info().Str("provider", string(s.decider.Source())).Bool("forced", forced).Msg("Starting trading cycle")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
		if err != nil {
			result.DurationMs = s.now().Sub(started).Milliseconds()
			failed := events.NewCycleData(events.CycleFailed, cycleID, forced)
			failed.Analyzed = result.Analyzed
			failed.Trades = result.Trades
			failed.DurationMs = result.DurationMs
			failed.Error = err.Error()
			s.publisher.PublishCycle(failed)
			if errors.Is(err, ErrNoMarketData) {
				log.Error().Msg("No market data available")
			} else {
				log.Error().Err(err).Msg("Trading cycle failed")
			}
		}
	}()

	universe := s.market.Universe()
	snapshots := s.market.Fetch(ctx, universe)
	if len(snapshots) == 0 {
		return result, ErrNoMarketData
	}

	batch := market.Ordered(universe, snapshots)
	if len(batch) > s.cfg.MaxAssetsPerCycle {
		batch = batch[:s.cfg.MaxAssetsPerCycle]
	}

	for _, snapshot := range batch {
		if !snapshot.Priced() {
			log.Debug().Str("symbol", snapshot.Symbol).Msg("Skipping asset without price")
			continue
		}

		decision := s.decider.Decide(ctx, snapshot)
		traded := s.maybeTrade(ctx, log, snapshot, decision)
		if traded {
			result.Trades++
		}
		result.Analyzed++

		s.publisher.PublishAssetUpdate(snapshot, decision, traded)
		log.Info().
			Str("symbol", snapshot.Symbol).
			Str("decision", decision.Action.Upper()).
			Float64("confidence", decision.Confidence).
			Msg("Asset analyzed")
	}

	portfolioSnapshot := s.ledger.Snapshot()
	s.publisher.PublishPortfolioSnapshot(portfolioSnapshot)
	result.TotalValue = portfolioSnapshot.TotalValue

	completed := s.now()
	s.markRun(completed)
	result.DurationMs = completed.Sub(started).Milliseconds()

	// Subscribers keep the published value; result stays private to the caller
	published := *result
	s.publisher.PublishCycle(&published)

	log.Info().
		Int("analyzed", result.Analyzed).
		Int("trades", result.Trades).
		Float64("total_value", result.TotalValue).
		Msg("Trading cycle completed")

	return result, nil
}

// maybeTrade applies an actionable decision sized by the cash policy
func (s *CycleScheduler) maybeTrade(ctx context.Context, log zerolog.Logger, snapshot domain.AssetSnapshot, decision domain.Decision) bool {
	if !decision.Actionable(s.cfg.ConfidenceThreshold) {
		return false
	}

	cash := s.ledger.CashBalance()
	amount := TradeAmount(cash, s.cfg.MaxTradeAmount, s.cfg.TradeCashFraction)
	if amount < s.cfg.MinTradeAmount || cash < amount {
		log.Debug().
			Str("symbol", snapshot.Symbol).
			Float64("amount", amount).
			Float64("cash", cash).
			Msg("Trade below minimum, skipping")
		return false
	}

	trade, err := s.ledger.Apply(snapshot.Symbol, decision.Action, amount, decision)
	if err != nil {
		if errors.Is(err, portfolio.ErrNoPosition) || errors.Is(err, portfolio.ErrInsufficientFunds) {
			log.Debug().Err(err).Str("symbol", snapshot.Symbol).Msg("Trade declined")
		} else {
			log.Warn().Err(err).Str("symbol", snapshot.Symbol).Msg("Trade rejected")
		}
		return false
	}

	cashAfter := s.ledger.CashBalance()
	s.publisher.PublishTrade(trade, cashAfter)

	if s.recorder != nil {
		if err := s.recorder.RecordTrade(ctx, trade, cashAfter); err != nil {
			log.Warn().Err(err).Str("trade_id", trade.ID).Msg("Failed to journal trade")
		}
	}
	return true
}

// TradeAmount is the per-trade size: the cap or a fraction of cash, whichever is smaller
func TradeAmount(cash, maxAmount, fraction float64) float64 {
	return math.Min(maxAmount, cash*fraction)
}
