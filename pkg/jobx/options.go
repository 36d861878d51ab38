package jobx

import "time"

// QueueConcurrency binds a queue name to its worker count.
type QueueConcurrency struct {
	Name        string
	Concurrency int
}

// WorkerOptions configures the job processing client.
type WorkerOptions struct {
	Queues          []QueueConcurrency
	PollInterval    time.Duration
	PromoteInterval time.Duration
	ShutdownTimeout time.Duration
	RetryBase       time.Duration
	// StalledAfter reclaims active jobs not updated for this long. Zero
	// disables reclaiming.
	StalledAfter    time.Duration
	StalledInterval time.Duration
	Now             func() time.Time
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		PollInterval:    time.Second,
		PromoteInterval: time.Second,
		ShutdownTimeout: 30 * time.Second,
		RetryBase:       time.Second,
		StalledInterval: time.Minute,
		Now:             time.Now,
	}
}

// WorkerOption is a functional option for configuring the client.
type WorkerOption func(*WorkerOptions)

// WithQueue adds a queue served by n workers.
func WithQueue(name string, n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n < 1 {
			n = 1
		}
		o.Queues = append(o.Queues, QueueConcurrency{Name: name, Concurrency: n})
	}
}

// WithPollInterval sets how long an idle worker waits before polling again.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

// WithPromoteInterval sets how often delayed jobs are promoted.
func WithPromoteInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.PromoteInterval = d
		}
	}
}

// WithShutdownTimeout bounds how long in-flight jobs may run after Start's
// context is cancelled.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.ShutdownTimeout = d
	}
}

// WithRetryBase sets the first retry delay; later retries double it.
func WithRetryBase(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.RetryBase = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) WorkerOption {
	return func(o *WorkerOptions) {
		o.Now = now
	}
}

// WithStalledAfter reclaims jobs whose worker stopped updating them for d,
// checking every interval.
func WithStalledAfter(d, interval time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.StalledAfter = d
		if interval > 0 {
			o.StalledInterval = interval
		}
	}
}
