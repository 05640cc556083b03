package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/utils"
)

// slowAnalysis is the provider latency above which a call is logged as slow
const slowAnalysis = 10 * time.Second

// Engine decides per snapshot. It never fails: any error or panic from the
// configured strategy degrades to the demo strategy, tagged as demo.
type Engine struct {
	strategy Strategy
	demo     DemoStrategy
	log      zerolog.Logger
}

// NewEngine creates an engine around strategy. A nil strategy selects the demo strategy.
func NewEngine(strategy Strategy, log zerolog.Logger) *Engine {
	if strategy == nil {
		strategy = DemoStrategy{}
	}
	return &Engine{
		strategy: strategy,
		log:      log.With().Str("component", "decision_engine").Logger(),
	}
}

// NewDecider selects a strategy once from configuration. A provider source
// without a completer falls back to demo.
func NewDecider(source domain.DecisionSource, completer domain.TextCompleter, log zerolog.Logger) *Engine {
	if source == domain.SourceDemo || completer == nil {
		return NewEngine(DemoStrategy{}, log)
	}
	return NewEngine(NewProviderStrategy(completer, source), log)
}

// Source returns the configured decision source
func (e *Engine) Source() domain.DecisionSource {
	return e.strategy.Source()
}

// Decide returns a decision for snapshot
func (e *Engine) Decide(ctx context.Context, snapshot domain.AssetSnapshot) (decision domain.Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("symbol", snapshot.Symbol).
				Str("source", string(e.strategy.Source())).
				Str("panic", fmt.Sprint(r)).
				Msg("Strategy panicked, using demo decision")
			decision = e.demo.Decide(snapshot)
		}
	}()

	timer := utils.NewTimer("analyze:"+snapshot.Symbol, slowAnalysis, e.log)
	decision, err := e.strategy.Analyze(ctx, snapshot)
	timer.Stop()
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("symbol", snapshot.Symbol).
			Msg("Analysis failed, using demo decision")
		return e.demo.Decide(snapshot)
	}
	return decision
}
