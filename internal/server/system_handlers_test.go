package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cryptopilot/internal/domain"
)

func newTestSystemHandlers(cycle *fakeCycle) *SystemHandlers {
	h := NewSystemHandlers(cycle, samplePortfolio(), domain.SourceDemo, domain.ModeDemo, zerolog.Nop())
	h.stats = func() (float64, float64) { return 12.5, 40 }
	return h
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	t.Run("idle before first cycle", func(t *testing.T) {
		h := newTestSystemHandlers(&fakeCycle{})

		rec := httptest.NewRecorder()
		h.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp SystemStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "running", resp.Status)
		assert.Equal(t, domain.SourceDemo, resp.AIProvider)
		assert.Equal(t, domain.ModeDemo, resp.Mode)
		assert.Equal(t, 990.0, resp.Portfolio.CashBalance)
		assert.Equal(t, 10.0, resp.Portfolio.Positions["bitcoin"])
		assert.Equal(t, "idle", resp.Cycle.State)
		assert.Nil(t, resp.Cycle.LastRun)
		assert.Equal(t, 12.5, resp.System.CPUPercent)
		assert.Equal(t, 40.0, resp.System.MemoryPercent)

		_, err := time.Parse(time.RFC3339, resp.Timestamp)
		assert.NoError(t, err)
	})

	t.Run("running with last run", func(t *testing.T) {
		last := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		cycle := &fakeCycle{lastRun: last}
		cycle.running.Store(true)
		h := newTestSystemHandlers(cycle)

		rec := httptest.NewRecorder()
		h.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

		var resp SystemStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "running", resp.Cycle.State)
		require.NotNil(t, resp.Cycle.LastRun)
		assert.True(t, last.Equal(*resp.Cycle.LastRun))
	})
}

func TestSystemHandlers_HandleForceAnalysis(t *testing.T) {
	cycle := &fakeCycle{}
	h := newTestSystemHandlers(cycle)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		h.HandleForceAnalysis(rec, httptest.NewRequest(method, "/api/force_analysis", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"analysis_started"}`, rec.Body.String())
	}
	assert.Equal(t, int32(2), cycle.forced.Load())

	// Acknowledged even when a cycle is already running
	cycle.running.Store(true)
	rec := httptest.NewRecorder()
	h.HandleForceAnalysis(rec, httptest.NewRequest(http.MethodPost, "/api/force_analysis", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"analysis_started"}`, rec.Body.String())
}

func TestSystemHandlers_StatusEvent(t *testing.T) {
	h := newTestSystemHandlers(&fakeCycle{})

	status := h.StatusEvent()
	assert.Equal(t, "Connected to CryptoPilot", status.Message)
	assert.Equal(t, domain.SourceDemo, status.AIProvider)
	assert.Equal(t, domain.ModeDemo, status.Mode)
	assert.Equal(t, 1000.0, status.Portfolio.TotalValue)
}
