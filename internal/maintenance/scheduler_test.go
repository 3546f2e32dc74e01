package maintenance

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubStore struct {
	mu         sync.Mutex
	compact    int
	analyze    int
	sweep      int
	compactErr error
	sweepPanic bool
}

func (s *stubStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compact++
	return s.compactErr
}

func (s *stubStore) RefreshStatistics() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyze++
	return nil
}

func (s *stubStore) OrphanSweep() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweepPanic {
		panic("sweep exploded")
	}
	s.sweep++
	return 0, nil
}

func (s *stubStore) counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compact, s.analyze, s.sweep
}

func TestSchedulerRunsAllJobsOnStart(t *testing.T) {
	store := &stubStore{}
	s := NewScheduler(store, DefaultIntervals, nil)

	s.Start()
	defer s.Stop(time.Second)

	require.Eventually(t, func() bool {
		c, a, w := store.counts()
		return c == 1 && a == 1 && w == 1
	}, 2*time.Second, 10*time.Millisecond)

	runs := s.LastRuns()
	assert.False(t, runs[TaskCompact].IsZero())
	assert.False(t, runs[TaskRefreshStatistics].IsZero())
	assert.False(t, runs[TaskOrphanSweep].IsZero())
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	s := NewScheduler(&stubStore{}, DefaultIntervals, nil)

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	s.Stop(time.Second)
	assert.False(t, s.IsRunning())

	// Stopping again is harmless.
	s.Stop(time.Second)
}

func TestRunNowWithoutStart(t *testing.T) {
	store := &stubStore{}
	s := NewScheduler(store, DefaultIntervals, nil)

	require.NoError(t, s.RunNow(TaskCompact, TaskOrphanSweep))
	c, a, w := store.counts()
	assert.Equal(t, 1, c)
	assert.Zero(t, a)
	assert.Equal(t, 1, w)
}

func TestRunNowUnknownTask(t *testing.T) {
	s := NewScheduler(&stubStore{}, DefaultIntervals, nil)
	err := s.RunNow(Task("defragment"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defragment")
}

func TestJobFailureDoesNotAffectOthers(t *testing.T) {
	store := &stubStore{compactErr: errors.New("disk full")}
	s := NewScheduler(store, DefaultIntervals, nil)

	err := s.RunNow(TaskCompact, TaskRefreshStatistics)
	require.Error(t, err)

	c, a, _ := store.counts()
	assert.Equal(t, 1, c)
	assert.Equal(t, 1, a, "failure of one task must not skip the next")

	runs := s.LastRuns()
	assert.True(t, runs[TaskCompact].IsZero(), "failed run does not count as a completed run")
	assert.False(t, runs[TaskRefreshStatistics].IsZero())
}

func TestJobPanicIsContained(t *testing.T) {
	store := &stubStore{sweepPanic: true}
	s := NewScheduler(store, DefaultIntervals, nil)

	err := s.RunNow(TaskOrphanSweep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// The scheduler remains usable after a panicking job.
	store.sweepPanic = false
	require.NoError(t, s.RunNow(TaskOrphanSweep))
}
