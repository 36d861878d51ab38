package jobx

import (
	"errors"
	"time"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so the worker fails the job without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type deferredError struct {
	err   error
	delay time.Duration
}

func (e *deferredError) Error() string { return e.err.Error() }
func (e *deferredError) Unwrap() error { return e.err }

// Deferred marks err so the worker reschedules the job after delay
// without consuming an attempt.
func Deferred(err error, delay time.Duration) error {
	if err == nil {
		return nil
	}
	return &deferredError{err: err, delay: delay}
}

// DeferDelay returns the delay attached by Deferred.
func DeferDelay(err error) (time.Duration, bool) {
	var d *deferredError
	if errors.As(err, &d) {
		return d.delay, true
	}
	return 0, false
}

// Backoff is base doubled for every attempt after the first:
// base, 2·base, 4·base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}
	return base * time.Duration(1<<(attempt-1))
}
