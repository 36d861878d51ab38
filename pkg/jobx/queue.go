package jobx

import (
	"context"
	"time"
)

// Queue is a durable, priority and delay aware job store. Implementations
// own every state transition; a claimed job belongs to exactly one caller
// until it is completed, failed or rescheduled.
type Queue interface {
	// Enqueue stores a job as waiting, or delayed when job.Delay > 0.
	Enqueue(ctx context.Context, job Job) (*JobInfo, error)

	// Dequeue claims the highest priority waiting job of queue, oldest
	// first within a priority, and increments its attempts. It returns
	// nil when nothing is waiting or the queue is paused.
	Dequeue(ctx context.Context, queue string) (*JobInfo, error)

	// Complete moves an active job to completed.
	Complete(ctx context.Context, id string, result []byte) error
	// Fail moves an active job to failed.
	Fail(ctx context.Context, id string, errMsg string, result []byte) error
	// Retry moves an active job back to delayed for another attempt.
	Retry(ctx context.Context, id string, errMsg string, delay time.Duration) error
	// Defer is Retry without consuming an attempt.
	Defer(ctx context.Context, id string, errMsg string, delay time.Duration) error
	// UpdateProgress records 0–100 progress on an active job.
	UpdateProgress(ctx context.Context, id string, progress int) error

	// PromoteScheduled moves delayed jobs whose time has come to waiting.
	PromoteScheduled(ctx context.Context, queue string, now time.Time) (int, error)

	GetJob(ctx context.Context, id string) (*JobInfo, error)
	ListJobs(ctx context.Context, queue string, state State, limit int) ([]*JobInfo, error)
	Counts(ctx context.Context, queue string) (Counts, error)

	// RetryJob puts a failed job back in waiting with its attempts reset.
	RetryJob(ctx context.Context, id string) error
	// RemoveJob deletes a job that is not active.
	RemoveJob(ctx context.Context, id string) error

	Pause(ctx context.Context, queue string) error
	Resume(ctx context.Context, queue string) error
	IsPaused(ctx context.Context, queue string) (bool, error)

	// Clean removes jobs in a terminal state that finished more than
	// olderThan ago and returns them.
	Clean(ctx context.Context, queue string, state State, olderThan time.Duration) ([]*JobInfo, error)

	// RequeueStalled reclaims active jobs not updated for olderThan, left
	// behind by a worker that died. Jobs with attempts left go back to
	// waiting, the rest fail with ErrStalledMessage.
	RequeueStalled(ctx context.Context, queue string, olderThan time.Duration) (Stalled, error)
}

// ErrStalledMessage is recorded on jobs reclaimed from a dead worker.
const ErrStalledMessage = "job stalled: worker stopped updating it"

// Stalled counts the jobs RequeueStalled reclaimed.
type Stalled struct {
	Requeued int `json:"requeued"`
	Failed   int `json:"failed"`
}

// Retention caps how many terminal jobs a queue keeps.
type Retention struct {
	KeepCompleted int
	KeepFailed    int
}

// DefaultRetention keeps the 100 newest completed and 50 newest failed jobs.
func DefaultRetention() Retention {
	return Retention{KeepCompleted: 100, KeepFailed: 50}
}

// ClampProgress bounds progress to 0–100.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
