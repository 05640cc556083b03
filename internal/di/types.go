// Package di provides dependency injection type definitions.
//
// The Container holds every long-lived service instance and is handed to the
// server and command layer.
package di

import (
	"github.com/aristath/cryptopilot/internal/clients/coingecko"
	"github.com/aristath/cryptopilot/internal/clients/discord"
	"github.com/aristath/cryptopilot/internal/config"
	"github.com/aristath/cryptopilot/internal/database"
	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/events"
	"github.com/aristath/cryptopilot/internal/modules/analysis"
	"github.com/aristath/cryptopilot/internal/modules/journal"
	"github.com/aristath/cryptopilot/internal/modules/market"
	"github.com/aristath/cryptopilot/internal/modules/portfolio"
	"github.com/aristath/cryptopilot/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Databases
	JournalDB *database.DB

	// Repositories
	JournalRepo *journal.Repository

	// Clients
	PriceClient *coingecko.Client
	Completer   domain.TextCompleter // nil when the demo strategy is active
	Notifier    *discord.Notifier

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Services
	MarketService *market.Service
	Decider       *analysis.Engine
	Ledger        *portfolio.Ledger

	// Scheduling
	CycleScheduler *scheduler.CycleScheduler
	Driver         *scheduler.Driver
	CronScheduler  *scheduler.Scheduler

	unsubscribe []func()
}

// Close releases bus subscriptions and databases
func (c *Container) Close() error {
	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	c.unsubscribe = nil

	if c.JournalDB != nil {
		return c.JournalDB.Close()
	}
	return nil
}
