package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/modules/journal"
)

// Snapshotter provides consistent portfolio copies
type Snapshotter interface {
	Snapshot() domain.PortfolioSnapshot
}

// EquitySnapshotJob samples portfolio value into the journal
type EquitySnapshotJob struct {
	ledger   Snapshotter
	recorder EquityRecorder
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewEquitySnapshotJob creates a new EquitySnapshotJob
func NewEquitySnapshotJob(ledger Snapshotter, recorder EquityRecorder, log zerolog.Logger) *EquitySnapshotJob {
	return &EquitySnapshotJob{
		ledger:   ledger,
		recorder: recorder,
		timeout:  5 * time.Second,
		now:      time.Now,
		log:      log.With().Str("job", "equity_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *EquitySnapshotJob) Name() string {
	return "equity_snapshot"
}

// Run records the current total value
func (j *EquitySnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	point := journal.EquityFromSnapshot(j.ledger.Snapshot(), j.now())
	if err := j.recorder.RecordEquity(ctx, point); err != nil {
		return fmt.Errorf("failed to record equity snapshot: %w", err)
	}

	j.log.Debug().
		Float64("total_value", point.TotalValue).
		Int("open_positions", point.OpenPositions).
		Msg("Equity snapshot recorded")
	return nil
}
