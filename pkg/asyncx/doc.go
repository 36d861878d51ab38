// Package asyncx holds the small set of concurrency helpers the job
// pipeline leans on: fan-out with ordered results, retry with exponential
// backoff, deadline-bounded calls and context-aware sleeps.
//
// # Fan-out
//
//	stats, err := asyncx.Map(ctx, queues, func(ctx context.Context, q string) (*QueueStats, error) {
//	    return m.Stats(ctx, q)
//	})
//
// # Retry
//
// [RetryIf] stops as soon as the predicate rejects an error, which lets
// callers retry transient failures while surfacing permanent ones at once.
//
//	v, err := asyncx.RetryIf(ctx, 3, time.Second, isTransient, call)
//
// # Timeouts
//
// [WithTimeout] runs a call under a deadline. The returned error matches
// [ErrTimeout] only when the deadline, not the parent, ended the call.
package asyncx
