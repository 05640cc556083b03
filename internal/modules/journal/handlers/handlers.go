// Package handlers provides HTTP handlers for the trade and equity journal.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/modules/journal"
)

// Reader is the read side of the journal
type Reader interface {
	ListTrades(ctx context.Context, filter journal.TradeFilter) ([]domain.Trade, error)
	ListEquity(ctx context.Context, limit int) ([]journal.EquityPoint, error)
	Stats(ctx context.Context) (journal.Stats, error)
}

// Handler handles journal HTTP requests
type Handler struct {
	repo Reader
	log  zerolog.Logger
}

// NewHandler creates a new journal handler
func NewHandler(repo Reader, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "journal").Logger(),
	}
}

// RegisterRoutes registers journal routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/trades", h.HandleGetTrades)
	r.Get("/portfolio/history", h.HandleGetHistory)
	r.Get("/portfolio/stats", h.HandleGetStats)
}

// HandleGetTrades returns journaled trades, most recent first
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	filter := journal.TradeFilter{
		Symbol: r.URL.Query().Get("symbol"),
		Limit:  limit,
	}
	if action := r.URL.Query().Get("action"); action != "" {
		filter.Action = domain.ParseAction(action)
		if filter.Action == domain.ActionHold {
			h.writeError(w, http.StatusBadRequest, "action must be buy or sell")
			return
		}
	}

	trades, err := h.repo.ListTrades(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list trades")
		h.writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// HandleGetHistory returns equity samples in chronological order
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	points, err := h.repo.ListEquity(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list equity history")
		h.writeError(w, http.StatusInternalServerError, "failed to list equity history")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": points,
		"count":   len(points),
	})
}

// HandleGetStats returns journal statistics
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute stats")
		h.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
