// Package jobxtest holds the behaviour every jobx.Queue backend must share.
package jobxtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory builds an empty queue that reads time from now.
type Factory func(t *testing.T, now func() time.Time, retention jobx.Retention) jobx.Queue

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const queue = "content-enhancement"

type env struct {
	t     *testing.T
	ctx   context.Context
	clock *clock
	q     jobx.Queue
}

func newEnv(t *testing.T, f Factory, r jobx.Retention) *env {
	clk := &clock{t: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)}
	return &env{t: t, ctx: context.Background(), clock: clk, q: f(t, clk.Now, r)}
}

func (e *env) enqueue(job jobx.Job) *jobx.JobInfo {
	e.t.Helper()
	if job.Queue == "" {
		job.Queue = queue
	}
	if job.Type == "" {
		job.Type = "enhance"
	}
	info, err := e.q.Enqueue(e.ctx, job)
	require.NoError(e.t, err)
	e.clock.Advance(time.Millisecond)
	return info
}

func (e *env) claim() *jobx.JobInfo {
	e.t.Helper()
	job, err := e.q.Dequeue(e.ctx, queue)
	require.NoError(e.t, err)
	require.NotNil(e.t, job)
	return job
}

// Run exercises a backend against the shared queue contract.
func Run(t *testing.T, f Factory) {
	t.Run("priority then fifo", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		low := e.enqueue(jobx.Job{Priority: jobx.PriorityLow})
		high := e.enqueue(jobx.Job{Priority: jobx.PriorityHigh})
		medium := e.enqueue(jobx.Job{Priority: jobx.PriorityMedium})
		high2 := e.enqueue(jobx.Job{Priority: jobx.PriorityHigh})

		var order []string
		for i := 0; i < 4; i++ {
			order = append(order, e.claim().ID)
		}
		assert.Equal(t, []string{high.ID, high2.ID, medium.ID, low.ID}, order)

		job, err := e.q.Dequeue(e.ctx, queue)
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("delayed jobs wait for promotion", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		info := e.enqueue(jobx.Job{Delay: 10 * time.Second})
		assert.Equal(t, jobx.StateDelayed, info.State)

		job, err := e.q.Dequeue(e.ctx, queue)
		require.NoError(t, err)
		assert.Nil(t, job)

		n, err := e.q.PromoteScheduled(e.ctx, queue, e.clock.Now())
		require.NoError(t, err)
		assert.Zero(t, n)

		e.clock.Advance(10 * time.Second)
		n, err = e.q.PromoteScheduled(e.ctx, queue, e.clock.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got := e.claim()
		assert.Equal(t, info.ID, got.ID)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, jobx.StateActive, got.State)
	})

	t.Run("each job has one owner", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		for i := 0; i < 10; i++ {
			e.enqueue(jobx.Job{})
		}

		var (
			mu   sync.Mutex
			seen = map[string]int{}
			wg   sync.WaitGroup
		)
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					job, err := e.q.Dequeue(e.ctx, queue)
					if err != nil || job == nil {
						return
					}
					mu.Lock()
					seen[job.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, 10)
		for id, n := range seen {
			assert.Equal(t, 1, n, "job %s claimed more than once", id)
		}
	})

	t.Run("transitions require an active job", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		info := e.enqueue(jobx.Job{})

		err := e.q.Complete(e.ctx, info.ID, nil)
		assert.True(t, errx.IsCode(err, jobx.ErrNotActive))

		job := e.claim()
		require.NoError(t, e.q.UpdateProgress(e.ctx, job.ID, 40))
		got, err := e.q.GetJob(e.ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, got.Progress)

		require.NoError(t, e.q.Complete(e.ctx, job.ID, []byte(`{"success":true}`)))
		assert.True(t, errx.IsCode(e.q.Complete(e.ctx, job.ID, nil), jobx.ErrNotActive))
		assert.True(t, errx.IsCode(e.q.UpdateProgress(e.ctx, job.ID, 10), jobx.ErrNotActive))

		_, err = e.q.GetJob(e.ctx, "missing")
		assert.True(t, errx.IsCode(err, jobx.ErrJobNotFound))
	})

	t.Run("retry consumes an attempt and defer does not", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		e.enqueue(jobx.Job{})

		job := e.claim()
		require.NoError(t, e.q.Retry(e.ctx, job.ID, "timeout", 2*time.Second))
		got, err := e.q.GetJob(e.ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobx.StateDelayed, got.State)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, "timeout", got.Error)
		assert.Equal(t, e.clock.Now().Add(2*time.Second).UnixMilli(), got.DelayUntil.UnixMilli())

		e.clock.Advance(2 * time.Second)
		_, err = e.q.PromoteScheduled(e.ctx, queue, e.clock.Now())
		require.NoError(t, err)
		job = e.claim()
		assert.Equal(t, 2, job.Attempts)

		require.NoError(t, e.q.Defer(e.ctx, job.ID, "rate limited", 24*time.Hour))
		got, err = e.q.GetJob(e.ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, 1, got.Deferrals)
	})

	t.Run("retention caps terminal sets", func(t *testing.T) {
		e := newEnv(t, f, jobx.Retention{KeepCompleted: 2, KeepFailed: 1})
		for i := 0; i < 5; i++ {
			e.enqueue(jobx.Job{})
		}
		var ids []string
		for i := 0; i < 3; i++ {
			job := e.claim()
			require.NoError(t, e.q.Complete(e.ctx, job.ID, nil))
			ids = append(ids, job.ID)
			e.clock.Advance(time.Second)
		}
		for i := 0; i < 2; i++ {
			job := e.claim()
			require.NoError(t, e.q.Fail(e.ctx, job.ID, "boom", nil))
			e.clock.Advance(time.Second)
		}

		counts, err := e.q.Counts(e.ctx, queue)
		require.NoError(t, err)
		assert.Equal(t, jobx.Counts{Completed: 2, Failed: 1}, counts)

		done, err := e.q.ListJobs(e.ctx, queue, jobx.StateCompleted, 10)
		require.NoError(t, err)
		require.Len(t, done, 2)
		assert.Equal(t, ids[2], done[0].ID)
		assert.Equal(t, ids[1], done[1].ID)

		_, err = e.q.GetJob(e.ctx, ids[0])
		assert.True(t, errx.IsCode(err, jobx.ErrJobNotFound))
	})

	t.Run("pause stops claims", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		e.enqueue(jobx.Job{})

		require.NoError(t, e.q.Pause(e.ctx, queue))
		paused, err := e.q.IsPaused(e.ctx, queue)
		require.NoError(t, err)
		assert.True(t, paused)

		job, err := e.q.Dequeue(e.ctx, queue)
		require.NoError(t, err)
		assert.Nil(t, job)

		require.NoError(t, e.q.Resume(e.ctx, queue))
		assert.NotNil(t, e.claim())
	})

	t.Run("remove and retry", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		waiting := e.enqueue(jobx.Job{Priority: jobx.PriorityLow})
		e.enqueue(jobx.Job{Priority: jobx.PriorityHigh})

		active := e.claim()
		assert.True(t, errx.IsCode(e.q.RemoveJob(e.ctx, active.ID), jobx.ErrJobActive))
		assert.True(t, errx.IsCode(e.q.RetryJob(e.ctx, active.ID), jobx.ErrNotFailed))

		require.NoError(t, e.q.RemoveJob(e.ctx, waiting.ID))
		_, err := e.q.GetJob(e.ctx, waiting.ID)
		assert.True(t, errx.IsCode(err, jobx.ErrJobNotFound))
		assert.True(t, errx.IsCode(e.q.RemoveJob(e.ctx, waiting.ID), jobx.ErrJobNotFound))

		require.NoError(t, e.q.Fail(e.ctx, active.ID, "write failed", nil))
		require.NoError(t, e.q.RetryJob(e.ctx, active.ID))
		got, err := e.q.GetJob(e.ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, jobx.StateWaiting, got.State)
		assert.Zero(t, got.Attempts)
		assert.Empty(t, got.Error)

		again := e.claim()
		assert.Equal(t, active.ID, again.ID)
		assert.Equal(t, 1, again.Attempts)
	})

	t.Run("stalled active jobs are reclaimed", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		last := e.enqueue(jobx.Job{MaxAttempts: 1})
		spare := e.enqueue(jobx.Job{})
		alive := e.enqueue(jobx.Job{})
		for i := 0; i < 3; i++ {
			e.claim()
		}

		e.clock.Advance(11 * time.Minute)
		require.NoError(t, e.q.UpdateProgress(e.ctx, alive.ID, 50))

		res, err := e.q.RequeueStalled(e.ctx, queue, 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, jobx.Stalled{Requeued: 1, Failed: 1}, res)

		got, err := e.q.GetJob(e.ctx, last.ID)
		require.NoError(t, err)
		assert.Equal(t, jobx.StateFailed, got.State)
		assert.Equal(t, jobx.ErrStalledMessage, got.Error)

		got, err = e.q.GetJob(e.ctx, spare.ID)
		require.NoError(t, err)
		assert.Equal(t, jobx.StateWaiting, got.State)
		assert.Equal(t, 0, got.Progress)

		got, err = e.q.GetJob(e.ctx, alive.ID)
		require.NoError(t, err)
		assert.Equal(t, jobx.StateActive, got.State)

		again := e.claim()
		assert.Equal(t, spare.ID, again.ID)
		assert.Equal(t, 2, again.Attempts)

		res, err = e.q.RequeueStalled(e.ctx, queue, 10*time.Minute)
		require.NoError(t, err)
		assert.Zero(t, res)
	})

	t.Run("clean removes only old terminal jobs", func(t *testing.T) {
		e := newEnv(t, f, jobx.DefaultRetention())
		for i := 0; i < 5; i++ {
			e.enqueue(jobx.Job{})
		}
		for i := 0; i < 3; i++ {
			require.NoError(t, e.q.Complete(e.ctx, e.claim().ID, nil))
		}
		e.clock.Advance(2 * time.Hour)
		var recent []string
		for i := 0; i < 2; i++ {
			job := e.claim()
			require.NoError(t, e.q.Complete(e.ctx, job.ID, nil))
			recent = append(recent, job.ID)
		}

		removed, err := e.q.Clean(e.ctx, queue, jobx.StateCompleted, time.Hour)
		require.NoError(t, err)
		assert.Len(t, removed, 3)

		left, err := e.q.ListJobs(e.ctx, queue, jobx.StateCompleted, 0)
		require.NoError(t, err)
		var ids []string
		for _, j := range left {
			ids = append(ids, j.ID)
		}
		assert.ElementsMatch(t, recent, ids)

		_, err = e.q.Clean(e.ctx, queue, jobx.StateWaiting, time.Hour)
		assert.True(t, errx.IsCode(err, jobx.ErrInvalidState))
	})
}
