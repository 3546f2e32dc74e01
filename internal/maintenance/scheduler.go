// Package maintenance runs background upkeep of the metadata store
// without blocking foreground operations.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/camf-project/camf-go/internal/logging"
	"github.com/camf-project/camf-go/internal/observability/metrics"
)

// Task identifies one maintenance job.
type Task string

const (
	TaskCompact           Task = "compact"
	TaskRefreshStatistics Task = "refresh_statistics"
	TaskOrphanSweep       Task = "orphan_sweep"
)

// pollInterval is the fixed cadence at which pending jobs are checked.
// Per-job timers would be more precise, but these are multi-hour
// maintenance periods; one-minute polling is plenty.
const pollInterval = time.Minute

// Store is the minimal metadata store surface the scheduler needs.
type Store interface {
	Compact() error
	RefreshStatistics() error
	OrphanSweep() (int64, error)
}

// Intervals configures the recurrence of each job.
type Intervals struct {
	Compact           time.Duration
	RefreshStatistics time.Duration
	OrphanSweep       time.Duration
}

// DefaultIntervals matches the configuration defaults.
var DefaultIntervals = Intervals{
	Compact:           24 * time.Hour,
	RefreshStatistics: 7 * 24 * time.Hour,
	OrphanSweep:       12 * time.Hour,
}

type job struct {
	task     Task
	interval time.Duration
	run      func() error
	lastRun  time.Time
}

// Scheduler owns the background maintenance loop. It is constructed
// explicitly and passed to its consumers; lifecycle is Start/Stop.
type Scheduler struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.StorageMetrics

	mu        sync.Mutex
	jobs      []*job
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler creates a scheduler for the given store. Metrics may be nil.
func NewScheduler(store Store, intervals Intervals, m *metrics.StorageMetrics) *Scheduler {
	s := &Scheduler{
		store:   store,
		logger:  logging.ForService("maintenance"),
		metrics: m,
	}
	s.jobs = []*job{
		{task: TaskCompact, interval: intervals.Compact, run: store.Compact},
		{task: TaskRefreshStatistics, interval: intervals.RefreshStatistics, run: store.RefreshStatistics},
		{task: TaskOrphanSweep, interval: intervals.OrphanSweep, run: func() error {
			_, err := store.OrphanSweep()
			return err
		}},
	}
	return s
}

// Start begins the polling loop and runs every job once immediately.
// Starting an already running scheduler is a no-op with a warning.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Warn("maintenance scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	go s.runLoop(ctx)
	s.logger.Info("maintenance scheduler started")
}

// Stop halts the loop and joins it with a bounded timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.isRunning = false
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("maintenance scheduler did not stop within timeout", "timeout", timeout)
	}
	s.logger.Info("maintenance scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// LastRuns exposes the last run timestamp per task for status reporting.
// Zero time means the task has not run yet.
func (s *Scheduler) LastRuns() map[Task]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Task]time.Time, len(s.jobs))
	for _, j := range s.jobs {
		out[j.task] = j.lastRun
	}
	return out
}

// RunNow triggers the given tasks immediately, outside the schedule.
// Unknown tasks are reported as errors; job failures are returned but do
// not affect other requested tasks.
func (s *Scheduler) RunNow(tasks ...Task) error {
	var firstErr error
	for _, task := range tasks {
		j := s.findJob(task)
		if j == nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("unknown maintenance task %q", task)
			}
			continue
		}
		if err := s.runJob(j); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scheduler) findJob(task Task) *job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.task == task {
			return j
		}
	}
	return nil
}

// runLoop polls pending jobs on a fixed interval. All jobs also run once
// on startup so a long-idle archive is repaired promptly.
func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.done)

	s.runPending(time.Now(), true)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runPending(now, false)
		}
	}
}

func (s *Scheduler) runPending(now time.Time, force bool) {
	s.mu.Lock()
	pending := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if force || now.Sub(j.lastRun) >= j.interval {
			pending = append(pending, j)
		}
	}
	s.mu.Unlock()

	for _, j := range pending {
		_ = s.runJob(j)
	}
}

// runJob executes one job with fault isolation: a panic or error in one
// job is logged and never cancels the loop or the other jobs.
func (s *Scheduler) runJob(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("maintenance task %s panicked: %v", j.task, r)
			s.logger.Error("maintenance task panicked", "task", j.task, "panic", r)
			s.recordError(j.task)
		}
	}()

	start := time.Now()
	if err = j.run(); err != nil {
		s.logger.Error("maintenance task failed", "task", j.task, "error", err)
		s.recordError(j.task)
		return err
	}

	s.mu.Lock()
	j.lastRun = time.Now()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.MaintenanceRuns.WithLabelValues(string(j.task)).Inc()
	}
	s.logger.Debug("maintenance task completed", "task", j.task, "duration", time.Since(start))
	return nil
}

func (s *Scheduler) recordError(task Task) {
	if s.metrics != nil {
		s.metrics.MaintenanceErrors.WithLabelValues(string(task)).Inc()
	}
}
