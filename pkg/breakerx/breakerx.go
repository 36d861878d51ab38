package breakerx

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
)

// State of a breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

var breakerErrors = errx.NewRegistry("BREAKERX")

var (
	ErrOpen = breakerErrors.Register("OPEN", errx.TypeUnavailable, "Circuit breaker is open")
)

// Options configure a breaker.
type Options struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	// IsExpected marks errors that neither count as failures nor change state.
	IsExpected func(error) bool
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold < 1 {
		o.FailureThreshold = 5
	}
	if o.RecoveryTimeout <= 0 {
		o.RecoveryTimeout = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Stats is a snapshot of a breaker.
type Stats struct {
	Name            string     `json:"name"`
	State           State      `json:"state"`
	FailureCount    int        `json:"failure_count"`
	SuccessCount    int        `json:"success_count"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
	NextAttemptTime *time.Time `json:"next_attempt_time,omitempty"`
}

// Breaker is a three-state circuit breaker. While HALF_OPEN only one probe
// call is in flight; other callers are rejected until it settles.
type Breaker struct {
	name string
	opts Options
	log  *logx.Entry

	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	lastFailure  time.Time
	nextAttempt  time.Time
	probeRunning bool
	// generation advances on every state change and reset. Outcomes of calls
	// admitted under an older generation are dropped.
	generation uint64
}

// ticket identifies an admitted call.
type ticket struct {
	generation uint64
	probe      bool
}

func New(name string, opts Options) *Breaker {
	return &Breaker{
		name:  name,
		opts:  opts.withDefaults(),
		state: StateClosed,
		log:   logx.Component("breakerx").WithField("breaker", name),
	}
}

func (b *Breaker) Name() string { return b.name }

// Execute runs fn through b.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	t, err := b.allow()
	if err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(t, err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Do is Execute for calls without a result.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (b *Breaker) openError() *errx.Error {
	return breakerErrors.New(ErrOpen).
		WithDetail("breaker", b.name).
		WithDetail("next_attempt", b.nextAttempt.Format(time.RFC3339))
}

func (b *Breaker) allow() (ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.opts.Now().Before(b.nextAttempt) {
			return ticket{}, b.openError()
		}
		b.transition(StateHalfOpen)
		b.probeRunning = true
		return ticket{generation: b.generation, probe: true}, nil
	case StateHalfOpen:
		if b.probeRunning {
			return ticket{}, b.openError()
		}
		b.probeRunning = true
		return ticket{generation: b.generation, probe: true}, nil
	default:
		return ticket{generation: b.generation}, nil
	}
}

// record settles an admitted call. Only the admitted probe moves a HALF_OPEN
// breaker.
func (b *Breaker) record(t ticket, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.generation != b.generation {
		return
	}
	if t.probe {
		b.probeRunning = false
	}

	if err != nil && b.opts.IsExpected != nil && b.opts.IsExpected(err) {
		return
	}

	if err == nil {
		b.successes++
		if t.probe {
			b.failures = 0
			b.transition(StateClosed)
			return
		}
		if b.failures > 0 {
			b.failures--
		}
		return
	}

	b.failures++
	b.lastFailure = b.opts.Now()
	if t.probe || b.failures >= b.opts.FailureThreshold {
		b.nextAttempt = b.lastFailure.Add(b.opts.RecoveryTimeout)
		b.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.generation++
	stateGauge.WithLabelValues(b.name).Set(stateValue(to))
	transitions.WithLabelValues(b.name, string(to)).Inc()
	b.log.WithFields(logx.Fields{"from": from, "to": to, "failures": b.failures}).Info("state change")
}

// State reports the current state. An OPEN breaker whose recovery time has
// passed still reports OPEN until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		Name:         b.name,
		State:        b.state,
		FailureCount: b.failures,
		SuccessCount: b.successes,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		s.LastFailureTime = &t
	}
	if b.state == StateOpen {
		t := b.nextAttempt
		s.NextAttemptTime = &t
	}
	return s
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.lastFailure = time.Time{}
	b.nextAttempt = time.Time{}
	b.probeRunning = false
	b.generation++
	b.transition(StateClosed)
}

// ForceOpen opens the breaker for a full recovery timeout.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextAttempt = b.opts.Now().Add(b.opts.RecoveryTimeout)
	b.probeRunning = false
	b.transition(StateOpen)
}

// ForceClose closes the breaker and clears its failure count.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probeRunning = false
	b.generation++
	b.transition(StateClosed)
}

// IsOpen reports whether err was produced by an open breaker.
func IsOpen(err error) bool {
	return errx.IsCode(err, ErrOpen)
}
