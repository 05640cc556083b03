package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/clients/anthropic"
	"github.com/aristath/cryptopilot/internal/clients/coingecko"
	"github.com/aristath/cryptopilot/internal/clients/discord"
	"github.com/aristath/cryptopilot/internal/clients/openai"
	"github.com/aristath/cryptopilot/internal/config"
	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/events"
	"github.com/aristath/cryptopilot/internal/modules/analysis"
	"github.com/aristath/cryptopilot/internal/modules/journal"
	"github.com/aristath/cryptopilot/internal/modules/market"
	"github.com/aristath/cryptopilot/internal/modules/portfolio"
	"github.com/aristath/cryptopilot/internal/scheduler"
)

// InitializeServices creates clients, services and the cycle scheduler
func InitializeServices(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}
	cfg := container.Config

	// Repositories
	container.JournalRepo = journal.NewRepository(container.JournalDB.Conn(), log)

	// Events
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Clients
	container.PriceClient = coingecko.NewClient(cfg.Market.BaseURL, cfg.Market.Timeout, log)
	source, completer := SelectCompleter(cfg, log)
	container.Completer = completer

	container.Notifier = discord.NewNotifier(cfg.DiscordWebhookURL, log)
	container.unsubscribe = append(container.unsubscribe, container.Notifier.Subscribe(container.EventBus))

	// Services
	container.MarketService = market.NewService(container.PriceClient, cfg.Market.Symbols, cfg.Market.Timeout, log)
	container.Decider = analysis.NewDecider(source, completer, log)
	container.Ledger = portfolio.NewLedger(cfg.Trading.StartingBalance, cfg.Trading.Mode, log)

	container.CycleScheduler = scheduler.NewCycleScheduler(
		scheduler.CycleConfig{
			AnalysisInterval:    cfg.Trading.AnalysisInterval,
			ConfidenceThreshold: cfg.Trading.ConfidenceThreshold,
			MaxTradeAmount:      cfg.Trading.MaxTradeAmount,
			MinTradeAmount:      cfg.Trading.MinTradeAmount,
			TradeCashFraction:   cfg.Trading.TradeCashFraction,
			MaxAssetsPerCycle:   cfg.Trading.MaxAssetsPerCycle,
		},
		container.MarketService,
		container.Decider,
		container.Ledger,
		container.EventManager,
		container.JournalRepo,
		log,
	)
	container.Driver = scheduler.NewDriver(
		container.CycleScheduler,
		cfg.Trading.RestInterval,
		cfg.Trading.BackoffInterval,
		log,
	)

	log.Info().
		Str("provider", string(container.Decider.Source())).
		Str("mode", string(cfg.Trading.Mode)).
		Float64("starting_balance", cfg.Trading.StartingBalance).
		Int("universe", len(container.MarketService.Universe())).
		Msg("Services initialized")

	return nil
}

// SelectCompleter builds the text-completion client for the configured
// decision source. A provider without an API key degrades to demo.
func SelectCompleter(cfg *config.Config, log zerolog.Logger) (domain.DecisionSource, domain.TextCompleter) {
	p := cfg.Providers
	switch cfg.Trading.DecisionSource {
	case domain.SourceOpenAI:
		if p.OpenAI.APIKey != "" {
			log.Info().Str("model", p.OpenAI.Model).Msg("OpenAI client initialized")
			return domain.SourceOpenAI, openai.NewClient(p.OpenAI.BaseURL, p.OpenAI.APIKey, p.OpenAI.Model, p.Timeout, log)
		}
	case domain.SourceClaude:
		if p.Claude.APIKey != "" {
			log.Info().Str("model", p.Claude.Model).Msg("Claude client initialized")
			return domain.SourceClaude, anthropic.NewClient(p.Claude.BaseURL, p.Claude.APIKey, p.Claude.Model, p.Timeout, log)
		}
	default:
		return domain.SourceDemo, nil
	}

	log.Warn().
		Str("provider", string(cfg.Trading.DecisionSource)).
		Msg("No API key configured for provider, using demo analysis")
	return domain.SourceDemo, nil
}
