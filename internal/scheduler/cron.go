// Package scheduler drives analysis cycles and the housekeeping jobs that
// run beside them.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is periodic housekeeping work, such as journaling equity snapshots
type Job interface {
	Run() error
	Name() string
}

// JobInfo describes a registered job
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
}

type registeredJob struct {
	id       cron.EntryID
	schedule string
}

// Scheduler runs housekeeping jobs on six-field cron expressions. A job
// still running when its next tick arrives is skipped, and a panicking job
// is logged without stopping the others.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]registeredJob
}

// New creates a housekeeping scheduler
func New(log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "housekeeping").Logger()
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		log:  log,
		jobs: make(map[string]registeredJob),
	}
}

// Start begins firing registered jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Strs("jobs", s.names()).Msg("Housekeeping started")
}

// Stop halts the schedule and waits for in-flight jobs to return
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Housekeeping stopped")
}

// AddJob registers job under spec, e.g. "0 */5 * * * *" or "@every 1m".
// Names must be unique.
func (s *Scheduler) AddJob(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	id, err := s.cron.AddFunc(spec, func() {
		if err := s.RunNow(job); err != nil {
			s.log.Warn().Err(err).Str("job", name).Msg("Housekeeping job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.jobs[name] = registeredJob{id: id, schedule: spec}

	s.log.Debug().Str("job", name).Str("schedule", spec).Msg("Housekeeping job registered")
	return nil
}

// Jobs lists registered jobs by name. Next is zero until Start.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, reg := range s.jobs {
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: reg.schedule,
			Next:     s.cron.Entry(reg.id).Next,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RunNow runs job on the calling goroutine, outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	started := time.Now()
	err := job.Run()
	s.log.Debug().
		Str("job", job.Name()).
		Dur("took", time.Since(started)).
		Bool("ok", err == nil).
		Msg("Housekeeping job ran")
	return err
}

func (s *Scheduler) names() []string {
	infos := s.Jobs()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// cronLogger routes cron's own messages (skips, recovered panics) to zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
