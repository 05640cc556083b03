// Package handlers provides HTTP handlers for the portfolio ledger.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
)

// Snapshotter provides consistent portfolio copies
type Snapshotter interface {
	Snapshot() domain.PortfolioSnapshot
}

// Handler handles portfolio HTTP requests
type Handler struct {
	ledger Snapshotter
	log    zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(ledger Snapshotter, log zerolog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		log:    log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio returns the current portfolio snapshot
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ledger.Snapshot())
}

// HandleGetPositions returns only the open positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	snapshot := h.ledger.Snapshot()

	positions := make([]map[string]interface{}, 0, len(snapshot.Positions))
	for symbol, quantity := range snapshot.Positions {
		weight := 0.0
		if snapshot.TotalValue > 0 {
			weight = quantity / snapshot.TotalValue
		}
		positions = append(positions, map[string]interface{}{
			"symbol":   symbol,
			"quantity": quantity,
			"weight":   weight,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions":    positions,
		"cash_balance": snapshot.CashBalance,
		"total_value":  snapshot.TotalValue,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
