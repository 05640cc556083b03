package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/events"
	"github.com/aristath/cryptopilot/internal/scheduler"
)

// CycleController is the part of the cycle scheduler the HTTP layer drives
type CycleController interface {
	Force() bool
	State() scheduler.State
	LastRun() time.Time
}

// PortfolioReader provides consistent portfolio copies
type PortfolioReader interface {
	Snapshot() domain.PortfolioSnapshot
}

// SystemHandlers handles status and trigger endpoints
type SystemHandlers struct {
	cycle     CycleController
	portfolio PortfolioReader
	source    domain.DecisionSource
	mode      domain.Mode
	startedAt time.Time
	stats     func() (float64, float64)
	log       zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	cycle CycleController,
	portfolio PortfolioReader,
	source domain.DecisionSource,
	mode domain.Mode,
	log zerolog.Logger,
) *SystemHandlers {
	h := &SystemHandlers{
		cycle:     cycle,
		portfolio: portfolio,
		source:    source,
		mode:      mode,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
	h.stats = h.getSystemStats
	return h
}

// CycleStatus describes the analysis cycle state
type CycleStatus struct {
	State   string     `json:"state"`
	LastRun *time.Time `json:"last_run"`
}

// HostStatus reports host resource usage
type HostStatus struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// SystemStatusResponse represents the status endpoint payload
type SystemStatusResponse struct {
	Status        string                   `json:"status"`
	AIProvider    domain.DecisionSource    `json:"ai_provider"`
	Mode          domain.Mode              `json:"mode"`
	Portfolio     domain.PortfolioSnapshot `json:"portfolio"`
	Timestamp     string                   `json:"timestamp"`
	Cycle         CycleStatus              `json:"cycle"`
	System        HostStatus               `json:"system"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
}

// HandleSystemStatus returns the bot status
// GET /api/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	cycle := CycleStatus{State: h.cycle.State().String()}
	if last := h.cycle.LastRun(); !last.IsZero() {
		cycle.LastRun = &last
	}

	cpuPercent, memPercent := h.stats()

	writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        "running",
		AIProvider:    h.source,
		Mode:          h.mode,
		Portfolio:     h.portfolio.Snapshot(),
		Timestamp:     now.Format(time.RFC3339),
		Cycle:         cycle,
		System:        HostStatus{CPUPercent: cpuPercent, MemoryPercent: memPercent},
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
	}, h.log)
}

// HandleForceAnalysis starts a cycle in the background
// GET|POST /api/force_analysis
func (h *SystemHandlers) HandleForceAnalysis(w http.ResponseWriter, r *http.Request) {
	if !h.cycle.Force() {
		h.log.Debug().Msg("Cycle already running, force ignored")
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "analysis_started",
	}, h.log)
}

// StatusEvent builds the snapshot pushed to a dashboard on connect
func (h *SystemHandlers) StatusEvent() *events.StatusData {
	return &events.StatusData{
		Message:    "Connected to CryptoPilot",
		AIProvider: h.source,
		Mode:       h.mode,
		Portfolio:  h.portfolio.Snapshot(),
	}
}

// getSystemStats calculates CPU and RAM usage percentages.
// Samples CPU over 100ms to keep the status call fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
