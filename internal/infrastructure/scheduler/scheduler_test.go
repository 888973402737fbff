package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type countingJob struct {
	name  string
	runs  atomic.Int32
	block chan struct{}
	err   error
	panic bool
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func newTestScheduler(clock *testClock) *Scheduler {
	cfg := DefaultSchedulerConfig()
	cfg.TickInterval = 2 * time.Millisecond
	cfg.Now = clock.Now
	return NewScheduler(cfg)
}

func TestScheduler_RunsDueJobOncePerOccurrence(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 5, 1, 22, 59, 30, 0, time.UTC)}
	s := newTestScheduler(clock)
	job := &countingJob{name: "daily_ranking"}

	require.NoError(t, s.RegisterCron(job, DailyAt(23, 0)))
	info, err := s.GetJobInfo("daily_ranking")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC), info.NextRun)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), job.runs.Load(), "not due yet")

	clock.Set(time.Date(2024, 5, 1, 23, 0, 1, 0, time.UTC))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load(), "fires once per occurrence")

	info, err = s.GetJobInfo("daily_ranking")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 23, 0, 0, 0, time.UTC), info.NextRun)
	assert.Eventually(t, func() bool {
		info, _ := s.GetJobInfo("daily_ranking")
		return info.LastResult != nil && info.LastResult.Success
	}, time.Second, time.Millisecond)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 5, 1, 22, 59, 0, 0, time.UTC)}
	s := newTestScheduler(clock)
	job := &countingJob{name: "daily_ranking"}
	require.NoError(t, s.RegisterCron(job, DailyAt(23, 0)))
	require.NoError(t, s.DisableJob("daily_ranking"))

	require.NoError(t, s.Start(context.Background()))
	clock.Set(time.Date(2024, 5, 1, 23, 5, 0, 0, time.UTC))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int32(0), job.runs.Load())
}

func TestScheduler_RunNowDoesNotOverlap(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestScheduler(clock)
	job := &countingJob{name: "daily_ranking", block: make(chan struct{})}
	require.NoError(t, s.RegisterCron(job, DailyAt(23, 0)))

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background(), "daily_ranking")
		done <- err
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	_, err := s.RunNow(context.Background(), "daily_ranking")
	assert.ErrorIs(t, err, ErrJobRunning)

	info, err := s.GetJobInfo("daily_ranking")
	require.NoError(t, err)
	assert.True(t, info.Running)

	close(job.block)
	require.NoError(t, <-done)

	history := s.GetHistory(0)
	require.Len(t, history, 1)
	assert.True(t, history[0].Manual)
	assert.Equal(t, int64(1), s.GetMetrics().Snapshot().TotalSuccesses)
}

func TestScheduler_RecordsFailuresAndPanics(t *testing.T) {
	clock := &testClock{t: time.Now()}
	s := newTestScheduler(clock)

	failing := &countingJob{name: "failing", err: errors.New("upstream down")}
	panicking := &countingJob{name: "panicking", panic: true}
	require.NoError(t, s.RegisterCron(failing, "* * * * *"))
	require.NoError(t, s.RegisterCron(panicking, "* * * * *"))

	var completed []JobResult
	var mu sync.Mutex
	s.OnJobComplete(func(r JobResult) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, r)
	})

	_, err := s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "upstream down")

	_, err = s.RunNow(context.Background(), "panicking")
	assert.ErrorIs(t, err, ErrJobPanicked)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "failing", jobs[0].Name)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	assert.Equal(t, int64(1), jobs[1].FailCount)

	mu.Lock()
	assert.Len(t, completed, 2)
	mu.Unlock()

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalFailures)
	assert.Zero(t, snap.SuccessRate)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 5, 1, 22, 59, 59, 0, time.UTC)}
	s := newTestScheduler(clock)
	job := &countingJob{name: "daily_ranking", block: make(chan struct{})}
	require.NoError(t, s.RegisterCron(job, DailyAt(23, 0)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	clock.Set(time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	history := s.GetHistory(1)
	require.Len(t, history, 1)
	assert.ErrorIs(t, history[0].Error, context.Canceled)
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "x"}

	assert.ErrorIs(t, s.Register(nil, MustParseCronExpression("* * * * *")), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	assert.Error(t, s.RegisterCron(job, "61 * * * *"))

	require.NoError(t, s.RegisterCron(job, "0 23 * * *"))
	assert.ErrorIs(t, s.RegisterCron(job, "0 23 * * *"), ErrJobAlreadyExists)

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
