// Package scheduler runs credify's periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job names.
const (
	RescanJob = "rescan"
	PruneJob  = "prune-exchanges"
)

// JobTimeout bounds a single job run.
const JobTimeout = 5 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	ctx  context.Context
	jobs map[string]cron.EntryID
}

// New creates a scheduler in the given timezone. An empty timezone means
// local time.
func New(timezone string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loc := time.Local
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
		}
	}

	cl := cronLogger{logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:   c,
		logger: logger,
		ctx:    context.Background(),
		jobs:   make(map[string]cron.EntryID),
	}, nil
}

// AddJob adds a job with a cron schedule, e.g. "0 7 * * *" or "@every 30s".
// Adding a job under an existing name replaces it.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(name, job); err != nil {
			s.logger.Warn("job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	old, replaced := s.jobs[name]
	s.jobs[name] = entryID
	s.mu.Unlock()
	if replaced {
		s.cron.Remove(old)
	}

	s.logger.Debug("job added", "job", name, "schedule", schedule)
	return nil
}

// AddRescanJob schedules the safety-net page rescan.
func (s *Scheduler) AddRescanJob(interval time.Duration, job Job) error {
	if interval < time.Second {
		return fmt.Errorf("rescan interval %s is below one second", interval)
	}
	return s.AddJob(RescanJob, "@every "+interval.String(), job)
}

// AddPruneJob schedules the daily exchange-file cleanup.
func (s *Scheduler) AddPruneJob(job Job) error {
	return s.AddJob(PruneJob, "@daily", job)
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	entryID, ok := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()
	if ok {
		s.cron.Remove(entryID)
		s.logger.Debug("job removed", "job", name)
	}
}

// Start begins running scheduled jobs. Job contexts derive from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.logger.Debug("scheduler started")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done when running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Debug("scheduler stopping")
	return s.cron.Stop()
}

// RunNow immediately executes a job
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, JobTimeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Debug("job completed", "job", name, "elapsed", time.Since(start))
	return nil
}

// ListJobs returns info about scheduled jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	jobs := make(map[string]cron.EntryID, len(s.jobs))
	for k, v := range s.jobs {
		jobs[k] = v
	}
	s.mu.Unlock()

	infos := make([]JobInfo, 0, len(jobs))
	for name, entryID := range jobs {
		entry := s.cron.Entry(entryID)
		if !entry.Valid() {
			continue
		}
		infos = append(infos, JobInfo{Name: name, NextRun: entry.Next, LastRun: entry.Prev})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
