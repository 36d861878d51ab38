// Package jobxmemory is a process-local jobx.Queue. It keeps the same
// ordering, ownership and retention rules as the Redis backend and is
// meant for tests and single-process development runs.
package jobxmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/google/uuid"
)

type Queue struct {
	mu        sync.Mutex
	jobs      map[string]*jobx.JobInfo
	paused    map[string]bool
	retention jobx.Retention
	now       func() time.Time
}

type Option func(*Queue)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithRetention overrides the terminal job caps.
func WithRetention(r jobx.Retention) Option {
	return func(q *Queue) { q.retention = r }
}

func New(opts ...Option) *Queue {
	q := &Queue{
		jobs:      make(map[string]*jobx.JobInfo),
		paused:    make(map[string]bool),
		retention: jobx.DefaultRetention(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

var _ jobx.Queue = (*Queue)(nil)

func clone(j *jobx.JobInfo) *jobx.JobInfo {
	c := *j
	c.Payload = append([]byte(nil), j.Payload...)
	if j.Result != nil {
		c.Result = append([]byte(nil), j.Result...)
	}
	if j.DelayUntil != nil {
		t := *j.DelayUntil
		c.DelayUntil = &t
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

func timePtr(t time.Time) *time.Time { return &t }

func (q *Queue) Enqueue(_ context.Context, job jobx.Job) (*jobx.JobInfo, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	info := &jobx.JobInfo{
		ID:          uuid.NewString(),
		Type:        job.Type,
		Queue:       job.Queue,
		Payload:     append([]byte(nil), job.Payload...),
		Priority:    job.Priority,
		State:       jobx.StateWaiting,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if job.Delay > 0 {
		info.State = jobx.StateDelayed
		info.DelayUntil = timePtr(now.Add(job.Delay))
	}
	q.jobs[info.ID] = info
	return clone(info), nil
}

func (q *Queue) Dequeue(_ context.Context, queue string) (*jobx.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.paused[queue] {
		return nil, nil
	}
	waiting := q.collect(queue, jobx.StateWaiting)
	if len(waiting) == 0 {
		return nil, nil
	}
	j := waiting[0]
	now := q.now()
	j.State = jobx.StateActive
	j.Attempts++
	j.Progress = 0
	j.StartedAt = timePtr(now)
	j.FinishedAt = nil
	j.UpdatedAt = now
	return clone(j), nil
}

func (q *Queue) active(id string) (*jobx.JobInfo, error) {
	j, ok := q.jobs[id]
	if !ok {
		return nil, jobx.NotFound(id)
	}
	if j.State != jobx.StateActive {
		return nil, jobx.NotActive(id)
	}
	return j, nil
}

func (q *Queue) Complete(_ context.Context, id string, result []byte) error {
	return q.finish(id, jobx.StateCompleted, "", result)
}

func (q *Queue) Fail(_ context.Context, id string, errMsg string, result []byte) error {
	return q.finish(id, jobx.StateFailed, errMsg, result)
}

func (q *Queue) finish(id string, state jobx.State, errMsg string, result []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, err := q.active(id)
	if err != nil {
		return err
	}
	now := q.now()
	j.State = state
	j.Error = errMsg
	j.Result = append([]byte(nil), result...)
	j.FinishedAt = timePtr(now)
	j.UpdatedAt = now
	if state == jobx.StateCompleted {
		j.Progress = 100
	}

	q.trim(j.Queue, state)
	return nil
}

// trim enforces retention on a terminal state. mu must be held.
func (q *Queue) trim(queue string, state jobx.State) {
	keep := q.retention.KeepCompleted
	if state == jobx.StateFailed {
		keep = q.retention.KeepFailed
	}
	if keep < 0 {
		return
	}
	done := q.collect(queue, state)
	// collect orders terminal jobs newest first
	for _, old := range done[min(keep, len(done)):] {
		delete(q.jobs, old.ID)
	}
}

func (q *Queue) Retry(_ context.Context, id string, errMsg string, delay time.Duration) error {
	return q.reschedule(id, errMsg, delay, false)
}

func (q *Queue) Defer(_ context.Context, id string, errMsg string, delay time.Duration) error {
	return q.reschedule(id, errMsg, delay, true)
}

func (q *Queue) reschedule(id, errMsg string, delay time.Duration, refund bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, err := q.active(id)
	if err != nil {
		return err
	}
	now := q.now()
	j.State = jobx.StateDelayed
	j.Error = errMsg
	j.DelayUntil = timePtr(now.Add(delay))
	j.UpdatedAt = now
	if refund {
		j.Attempts--
		j.Deferrals++
	}
	return nil
}

func (q *Queue) UpdateProgress(_ context.Context, id string, progress int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, err := q.active(id)
	if err != nil {
		return err
	}
	j.Progress = jobx.ClampProgress(progress)
	j.UpdatedAt = q.now()
	return nil
}

func (q *Queue) PromoteScheduled(_ context.Context, queue string, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, j := range q.jobs {
		if j.Queue == queue && j.State == jobx.StateDelayed && !j.DelayUntil.After(now) {
			j.State = jobx.StateWaiting
			j.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (q *Queue) GetJob(_ context.Context, id string) (*jobx.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return nil, jobx.NotFound(id)
	}
	return clone(j), nil
}

func (q *Queue) ListJobs(_ context.Context, queue string, state jobx.State, limit int) ([]*jobx.JobInfo, error) {
	if !state.Valid() {
		return nil, jobx.InvalidState(state)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.collect(queue, state)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	out := make([]*jobx.JobInfo, len(jobs))
	for i, j := range jobs {
		out[i] = clone(j)
	}
	return out, nil
}

// collect returns a queue's jobs in one state, in the order the Redis
// backend's sorted sets would return them.
func (q *Queue) collect(queue string, state jobx.State) []*jobx.JobInfo {
	var jobs []*jobx.JobInfo
	for _, j := range q.jobs {
		if j.Queue == queue && j.State == state {
			jobs = append(jobs, j)
		}
	}
	sort.SliceStable(jobs, func(a, b int) bool {
		x, y := jobs[a], jobs[b]
		switch state {
		case jobx.StateWaiting:
			sx, sy := jobx.WaitScore(x.Priority, x.CreatedAt), jobx.WaitScore(y.Priority, y.CreatedAt)
			if sx != sy {
				return sx < sy
			}
		case jobx.StateDelayed:
			if !x.DelayUntil.Equal(*y.DelayUntil) {
				return x.DelayUntil.Before(*y.DelayUntil)
			}
		case jobx.StateActive:
			if !x.StartedAt.Equal(*y.StartedAt) {
				return x.StartedAt.Before(*y.StartedAt)
			}
		default:
			if !x.FinishedAt.Equal(*y.FinishedAt) {
				return x.FinishedAt.After(*y.FinishedAt)
			}
		}
		return x.ID < y.ID
	})
	return jobs
}

func (q *Queue) Counts(_ context.Context, queue string) (jobx.Counts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var c jobx.Counts
	for _, j := range q.jobs {
		if j.Queue != queue {
			continue
		}
		switch j.State {
		case jobx.StateWaiting:
			c.Waiting++
		case jobx.StateDelayed:
			c.Delayed++
		case jobx.StateActive:
			c.Active++
		case jobx.StateCompleted:
			c.Completed++
		case jobx.StateFailed:
			c.Failed++
		}
	}
	return c, nil
}

func (q *Queue) RetryJob(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return jobx.NotFound(id)
	}
	if j.State != jobx.StateFailed {
		return jobx.NotFailed(id, j.State)
	}
	j.State = jobx.StateWaiting
	j.Attempts = 0
	j.Deferrals = 0
	j.Progress = 0
	j.Error = ""
	j.Result = nil
	j.StartedAt = nil
	j.FinishedAt = nil
	j.DelayUntil = nil
	j.UpdatedAt = q.now()
	return nil
}

func (q *Queue) RemoveJob(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return jobx.NotFound(id)
	}
	if j.State == jobx.StateActive {
		return jobx.ActiveRemoval(id)
	}
	delete(q.jobs, id)
	return nil
}

func (q *Queue) Pause(_ context.Context, queue string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused[queue] = true
	return nil
}

func (q *Queue) Resume(_ context.Context, queue string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.paused, queue)
	return nil
}

func (q *Queue) IsPaused(_ context.Context, queue string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused[queue], nil
}

func (q *Queue) Clean(_ context.Context, queue string, state jobx.State, olderThan time.Duration) ([]*jobx.JobInfo, error) {
	if !state.Terminal() {
		return nil, jobx.InvalidState(state)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-olderThan)
	var removed []*jobx.JobInfo
	for _, j := range q.collect(queue, state) {
		if j.FinishedAt.Before(cutoff) {
			removed = append(removed, clone(j))
			delete(q.jobs, j.ID)
		}
	}
	return removed, nil
}

func (q *Queue) RequeueStalled(_ context.Context, queue string, olderThan time.Duration) (jobx.Stalled, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	cutoff := now.Add(-olderThan)
	var res jobx.Stalled
	for _, j := range q.collect(queue, jobx.StateActive) {
		if !j.UpdatedAt.Before(cutoff) {
			continue
		}
		j.Error = jobx.ErrStalledMessage
		j.UpdatedAt = now
		if j.Attempts >= j.MaxAttempts {
			j.State = jobx.StateFailed
			j.FinishedAt = timePtr(now)
			res.Failed++
			continue
		}
		j.State = jobx.StateWaiting
		j.Progress = 0
		j.StartedAt = nil
		res.Requeued++
	}
	if res.Failed > 0 {
		q.trim(queue, jobx.StateFailed)
	}
	return res, nil
}
