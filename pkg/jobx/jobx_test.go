package jobx_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx/jobxmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClient(t *testing.T) (*jobx.Client, *jobxmemory.Queue, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	q := jobxmemory.New(jobxmemory.WithClock(clk.Now))
	c := jobx.NewClient(q,
		jobx.WithQueue("work", 1),
		jobx.WithRetryBase(time.Second),
		jobx.WithClock(clk.Now),
	)
	return c, q, clk
}

func claim(t *testing.T, q jobx.Queue) *jobx.JobInfo {
	t.Helper()
	job, err := q.Dequeue(context.Background(), "work")
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestEnqueueValidatesAndDefaults(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	_, err := c.Enqueue(ctx, jobx.Job{Queue: "work"})
	assert.True(t, errx.IsCode(err, jobx.ErrInvalidJob))

	info, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work"})
	require.NoError(t, err)
	assert.Equal(t, jobx.DefaultMaxAttempts, info.MaxAttempts)
	assert.Equal(t, jobx.StateWaiting, info.State)
	assert.JSONEq(t, "{}", string(info.Payload))
}

func TestProcessJobCompletesWithResult(t *testing.T) {
	c, q, _ := newClient(t)
	ctx := context.Background()

	c.Register("enhance", func(ctx context.Context, job *jobx.JobInfo, progress jobx.ProgressFunc) (any, error) {
		require.NoError(t, progress(ctx, 50))
		return map[string]bool{"ok": true}, nil
	})
	_, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work"})
	require.NoError(t, err)

	job := claim(t, q)
	c.ProcessJob(ctx, job)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobx.StateCompleted, got.State)
	assert.Equal(t, 100, got.Progress)
	assert.JSONEq(t, `{"ok":true}`, string(got.Result))
}

func TestTransientErrorsRetryWithDoublingBackoff(t *testing.T) {
	c, q, clk := newClient(t)
	ctx := context.Background()

	c.Register("enhance", func(context.Context, *jobx.JobInfo, jobx.ProgressFunc) (any, error) {
		return nil, errors.New("connection reset")
	})
	_, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work", MaxAttempts: 3})
	require.NoError(t, err)

	var gaps []time.Duration
	for attempt := 1; attempt <= 3; attempt++ {
		job := claim(t, q)
		assert.Equal(t, attempt, job.Attempts)
		c.ProcessJob(ctx, job)

		got, err := q.GetJob(ctx, job.ID)
		require.NoError(t, err)
		if attempt == 3 {
			assert.Equal(t, jobx.StateFailed, got.State)
			assert.Equal(t, "connection reset", got.Error)
			break
		}
		require.Equal(t, jobx.StateDelayed, got.State)
		gap := got.DelayUntil.Sub(clk.Now())
		gaps = append(gaps, gap)

		clk.Advance(gap)
		n, err := q.PromoteScheduled(ctx, "work", clk.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, gaps)
}

func TestPermanentErrorFailsImmediately(t *testing.T) {
	c, q, _ := newClient(t)
	ctx := context.Background()

	c.Register("enhance", func(context.Context, *jobx.JobInfo, jobx.ProgressFunc) (any, error) {
		return map[string]bool{"success": false}, jobx.Permanent(errors.New("record missing"))
	})
	_, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work"})
	require.NoError(t, err)

	job := claim(t, q)
	c.ProcessJob(ctx, job)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobx.StateFailed, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.JSONEq(t, `{"success":false}`, string(got.Result))
}

func TestDeferredErrorDoesNotConsumeAttempt(t *testing.T) {
	c, q, clk := newClient(t)
	ctx := context.Background()

	c.Register("enhance", func(context.Context, *jobx.JobInfo, jobx.ProgressFunc) (any, error) {
		return nil, jobx.Deferred(errors.New("rate limited"), 24*time.Hour)
	})
	_, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work", MaxAttempts: 1})
	require.NoError(t, err)

	job := claim(t, q)
	c.ProcessJob(ctx, job)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobx.StateDelayed, got.State)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, 1, got.Deferrals)
	assert.Equal(t, clk.Now().Add(24*time.Hour), *got.DelayUntil)
}

func TestUnknownTypeFails(t *testing.T) {
	c, q, _ := newClient(t)
	ctx := context.Background()

	_, err := c.Enqueue(ctx, jobx.Job{Type: "mystery", Queue: "work"})
	require.NoError(t, err)

	job := claim(t, q)
	c.ProcessJob(ctx, job)

	got, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobx.StateFailed, got.State)
	assert.Contains(t, got.Error, jobx.ErrNoHandler.Code)
}

func TestStartProcessesUntilCancelled(t *testing.T) {
	q := jobxmemory.New()
	c := jobx.NewClient(q,
		jobx.WithQueue("work", 2),
		jobx.WithPollInterval(5*time.Millisecond),
		jobx.WithPromoteInterval(5*time.Millisecond),
		jobx.WithShutdownTimeout(time.Second),
	)

	var done atomic.Int32
	c.Register("enhance", func(context.Context, *jobx.JobInfo, jobx.ProgressFunc) (any, error) {
		done.Add(1)
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		payload, _ := json.Marshal(map[string]int{"n": i})
		_, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work", Payload: payload})
		require.NoError(t, err)
	}
	_, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work", Delay: 10 * time.Millisecond})
	require.NoError(t, err)

	stopped := make(chan error, 1)
	go func() { stopped <- c.Start(ctx) }()

	assert.Eventually(t, func() bool { return done.Load() == 6 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-stopped)

	counts, err := q.Counts(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, int64(6), counts.Completed)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, jobx.Backoff(time.Second, 1))
	assert.Equal(t, 2*time.Second, jobx.Backoff(time.Second, 2))
	assert.Equal(t, 4*time.Second, jobx.Backoff(time.Second, 3))
	assert.Equal(t, time.Second, jobx.Backoff(time.Second, 0))
}

func TestReclaimStalledRequeuesOrphanedJobs(t *testing.T) {
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	q := jobxmemory.New(jobxmemory.WithClock(clk.Now))
	c := jobx.NewClient(q,
		jobx.WithQueue("work", 1),
		jobx.WithStalledAfter(10*time.Minute, time.Minute),
		jobx.WithClock(clk.Now),
	)
	ctx := context.Background()

	_, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work"})
	require.NoError(t, err)
	orphan := claim(t, q)

	clk.Advance(5 * time.Minute)
	c.ReclaimStalled(ctx)
	got, err := q.GetJob(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, jobx.StateActive, got.State, "not stalled yet")

	clk.Advance(6 * time.Minute)
	c.ReclaimStalled(ctx)
	got, err = q.GetJob(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, jobx.StateWaiting, got.State)
	assert.Equal(t, jobx.ErrStalledMessage, got.Error)
}

func TestReclaimStalledDisabledByDefault(t *testing.T) {
	c, q, clk := newClient(t)
	ctx := context.Background()

	_, err := c.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "work"})
	require.NoError(t, err)
	orphan := claim(t, q)

	clk.Advance(24 * time.Hour)
	c.ReclaimStalled(ctx)
	got, err := q.GetJob(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, jobx.StateActive, got.State)
}
