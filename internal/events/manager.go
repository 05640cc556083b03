package events

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
)

const dashboardTimeFormat = "15:04:05"

// Manager handles event emission and logging. It is the notification sink
// the analysis cycle publishes to; delivery to observers never reports back.
type Manager struct {
	bus *Bus
	log zerolog.Logger
	now func() time.Time
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
		now: time.Now,
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped emits an event with typed data to the bus and logs it
func (m *Manager) EmitTyped(module string, data EventData) {
	m.bus.Emit(module, data)

	m.log.Debug().
		Str("event_type", string(data.EventType())).
		Str("module", module).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.EmitTyped(module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}

// PublishAssetUpdate pushes one analysed asset to observers
func (m *Manager) PublishAssetUpdate(snapshot domain.AssetSnapshot, decision domain.Decision, traded bool) {
	m.EmitTyped("analysis", &AssetAnalyzedData{
		Symbol:     strings.ToUpper(snapshot.Symbol),
		Price:      snapshot.Price,
		Change24h:  snapshot.Change24h,
		Decision:   decision.Action.Upper(),
		Confidence: decision.Confidence,
		Reasoning:  decision.Rationale,
		Provider:   decision.Source,
		Timestamp:  m.now().Format(dashboardTimeFormat),
		Traded:     traded,
	})
}

// PublishPortfolioSnapshot pushes the full portfolio to observers
func (m *Manager) PublishPortfolioSnapshot(snapshot domain.PortfolioSnapshot) {
	m.EmitTyped("portfolio", &PortfolioUpdatedData{PortfolioSnapshot: snapshot})
}

// PublishTrade announces a trade appended to the ledger
func (m *Manager) PublishTrade(trade domain.Trade, cashBalance float64) {
	m.EmitTyped("portfolio", &TradeExecutedData{Trade: trade, CashBalance: cashBalance})
}

// PublishCycle announces a cycle lifecycle transition
func (m *Manager) PublishCycle(data *CycleData) {
	m.EmitTyped("scheduler", data)
}
