package asyncx

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ─── Fan-out ─────────────────────────────────────────────────────────────────

// All runs fns concurrently and returns their results in input order.
// The first error wins; every goroutine is still awaited.
func All[T any](ctx context.Context, fns ...func(context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(fns))
	errs := make([]error, len(fns))

	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn func(context.Context) (T, error)) {
			defer wg.Done()
			results[i], errs[i] = fn(ctx)
		}(i, fn)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Map applies fn to every item concurrently, preserving order.
func Map[T any, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	fns := make([]func(context.Context) (R, error), len(items))
	for i, item := range items {
		item := item
		fns[i] = func(ctx context.Context) (R, error) { return fn(ctx, item) }
	}
	return All(ctx, fns...)
}

// ─── Retry ───────────────────────────────────────────────────────────────────

// RetryWithBackoff calls fn up to attempts times, doubling the wait after
// each failure starting at initialDelay.
func RetryWithBackoff[T any](
	ctx context.Context,
	attempts int,
	initialDelay time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	return RetryIf(ctx, attempts, initialDelay, nil, fn)
}

// RetryIf is RetryWithBackoff that stops early when retryable reports
// false for the returned error. A nil predicate retries everything.
func RetryIf[T any](
	ctx context.Context,
	attempts int,
	initialDelay time.Duration,
	retryable func(error) bool,
	fn func(context.Context) (T, error),
) (T, error) {
	var (
		zero  T
		err   error
		val   T
		delay = initialDelay
	)
	for i := 0; i < attempts; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}

		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if retryable != nil && !retryable(err) {
			return zero, err
		}

		if i < attempts-1 {
			if serr := Sleep(ctx, delay); serr != nil {
				return zero, serr
			}
			delay *= 2
		}
	}
	return zero, err
}

// ─── Timing ──────────────────────────────────────────────────────────────────

// ErrTimeout is returned by WithTimeout when fn outlives its deadline.
var ErrTimeout = errors.New("asyncx: operation timed out")

// WithTimeout runs fn with a deadline of d. When the deadline passes first
// it returns an error matching both ErrTimeout and context.DeadlineExceeded.
// A cancelled parent context is reported as-is.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type res struct {
		v   T
		err error
	}
	ch := make(chan res, 1)
	go func() {
		v, err := fn(tctx)
		ch <- res{v, err}
	}()

	var zero T
	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, errors.Join(ErrTimeout, r.err)
		}
		return r.v, r.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, errors.Join(ErrTimeout, context.DeadlineExceeded)
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
