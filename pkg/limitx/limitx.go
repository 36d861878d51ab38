package limitx

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
)

// Counter is an atomically incrementable counter with a TTL. Acquire must
// check, increment and refresh the expiry as one indivisible step.
type Counter interface {
	// Acquire increments key when it is below limit and (re)sets its
	// expiry to window. It returns the count after the call and the time
	// left until the window resets.
	Acquire(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, count int, ttl time.Duration, err error)
	// Incr increments key unconditionally.
	Incr(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
	// Peek reads the count and time left without changing anything.
	Peek(ctx context.Context, key string) (count int, ttl time.Duration, err error)
	Reset(ctx context.Context, key string) error
}

// Status describes the current window.
type Status struct {
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining_requests"`
	ResetAt   time.Time `json:"reset_at"`
}

// Decision is the outcome of TryAcquire.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Status     Status        `json:"status"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Config configures a Limiter.
type Config struct {
	Key    string
	Limit  int
	Window time.Duration
}

// Limiter is a fixed-window limiter over a shared Counter.
type Limiter struct {
	counter Counter
	cfg     Config
	now     func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithRand sets the jitter source.
func WithRand(r *rand.Rand) Option {
	return func(l *Limiter) { l.rand = r }
}

func New(counter Counter, cfg Config, opts ...Option) *Limiter {
	if cfg.Key == "" {
		cfg.Key = "default"
	}
	l := &Limiter{
		counter: counter,
		cfg:     cfg,
		now:     time.Now,
		rand:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) Config() Config { return l.cfg }

func (l *Limiter) status(count int, ttl time.Duration) Status {
	remaining := l.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return Status{
		Count:     count,
		Limit:     l.cfg.Limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
	}
}

// TryAcquire takes one request from the window. It never lets the count
// pass the limit: a denied call leaves the counter untouched.
func (l *Limiter) TryAcquire(ctx context.Context) (Decision, error) {
	allowed, count, ttl, err := l.counter.Acquire(ctx, l.cfg.Key, l.cfg.Limit, l.cfg.Window)
	if err != nil {
		return Decision{}, limitErrors.NewWithCause(ErrCounter, err).WithDetail("key", l.cfg.Key)
	}
	d := Decision{Allowed: allowed, Status: l.status(count, ttl)}
	if !allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

// Acquire is TryAcquire that turns a denial into an ErrExceeded error.
func (l *Limiter) Acquire(ctx context.Context) error {
	d, err := l.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return Exceeded(d.RetryAfter)
	}
	return nil
}

// RecordUsage counts a call made outside TryAcquire.
func (l *Limiter) RecordUsage(ctx context.Context) error {
	if _, _, err := l.counter.Incr(ctx, l.cfg.Key, l.cfg.Window); err != nil {
		return limitErrors.NewWithCause(ErrCounter, err).WithDetail("key", l.cfg.Key)
	}
	return nil
}

func (l *Limiter) Status(ctx context.Context) (Status, error) {
	count, ttl, err := l.counter.Peek(ctx, l.cfg.Key)
	if err != nil {
		return Status{}, limitErrors.NewWithCause(ErrCounter, err).WithDetail("key", l.cfg.Key)
	}
	return l.status(count, ttl), nil
}

func (l *Limiter) Reset(ctx context.Context) error {
	if err := l.counter.Reset(ctx, l.cfg.Key); err != nil {
		return limitErrors.NewWithCause(ErrCounter, err).WithDetail("key", l.cfg.Key)
	}
	return nil
}

func (l *Limiter) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	l.randMu.Lock()
	defer l.randMu.Unlock()
	return time.Duration(l.rand.Int64N(int64(max)))
}

// OptimalDelay is an advisory pause for pacing batches: nothing while less
// than half the budget is used, up to 1s while comfortable, up to 5s within
// 5 of the limit and the time to reset once exhausted.
func (l *Limiter) OptimalDelay(ctx context.Context) (time.Duration, error) {
	s, err := l.Status(ctx)
	if err != nil {
		return 0, err
	}
	return l.delayFor(s), nil
}

func (l *Limiter) delayFor(s Status) time.Duration {
	switch {
	case s.Remaining <= 0:
		if d := s.ResetAt.Sub(l.now()); d > 0 {
			return d
		}
		return 0
	case s.Count < l.cfg.Limit/2:
		return 0
	case s.Remaining <= 5:
		return l.jitter(5 * time.Second)
	default:
		return l.jitter(time.Second)
	}
}

var limitErrors = errx.NewRegistry("LIMITX")

var (
	ErrExceeded = limitErrors.Register("EXCEEDED", errx.TypeRateLimit, "Rate limit exceeded")
	ErrCounter  = limitErrors.Register("COUNTER", errx.TypeExternal, "Rate limit counter unavailable")
)

// Exceeded builds the rate limit error with the seconds until reset.
func Exceeded(retryAfter time.Duration) *errx.Error {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return limitErrors.New(ErrExceeded).WithDetail("retry_after_seconds", secs)
}

// RetryAfter extracts the retry hint from an ErrExceeded error.
func RetryAfter(err error) (time.Duration, bool) {
	e, ok := errx.As(err)
	if !ok || e.Code != ErrExceeded.Code {
		return 0, false
	}
	secs, ok := e.Details["retry_after_seconds"].(int)
	if !ok {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
