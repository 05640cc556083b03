package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/scheduler"
)

// JobInstances holds job references for manual triggering
type JobInstances struct {
	EquitySnapshot scheduler.Job
}

// RegisterJobs creates the cron scheduler and registers auxiliary jobs.
// The scheduler is not started.
func RegisterJobs(container *Container, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.CronScheduler = scheduler.New(log)
	instances := &JobInstances{
		EquitySnapshot: scheduler.NewEquitySnapshotJob(container.Ledger, container.JournalRepo, log),
	}

	if err := container.CronScheduler.AddJob(container.Config.EquitySnapshotSchedule, instances.EquitySnapshot); err != nil {
		return nil, fmt.Errorf("failed to register equity snapshot job: %w", err)
	}

	return instances, nil
}
