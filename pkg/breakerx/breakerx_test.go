package breakerx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/breakerx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("upstream unavailable")

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newBreaker(threshold int) (*breakerx.Breaker, *clock) {
	clk := &clock{t: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	b := breakerx.New("content-generation", breakerx.Options{
		FailureThreshold: threshold,
		RecoveryTimeout:  time.Minute,
		Now:              clk.Now,
	})
	return b, clk
}

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestTripsOnExactlyTheThresholdFailure(t *testing.T) {
	b, _ := newBreaker(3)
	ctx := context.Background()

	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.Equal(t, breakerx.StateClosed, b.State())

	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.Equal(t, breakerx.StateOpen, b.State())
}

func TestSuccessDecaysFailures(t *testing.T) {
	b, _ := newBreaker(3)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	require.Error(t, b.Do(ctx, fail))
	require.NoError(t, b.Do(ctx, succeed))
	assert.Equal(t, 1, b.Stats().FailureCount)

	require.Error(t, b.Do(ctx, fail))
	assert.Equal(t, breakerx.StateClosed, b.State())
}

func TestOpenRejectsWithoutCallingThenProbes(t *testing.T) {
	b, clk := newBreaker(5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, b.Do(ctx, fail), errDown)
	}
	require.Equal(t, breakerx.StateOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, breakerx.IsOpen(err))
	assert.False(t, called)
	assert.Equal(t, 5, b.Stats().FailureCount, "rejections do not count as failures")

	clk.Advance(time.Minute)
	var seen breakerx.State
	err = b.Do(ctx, func(context.Context) error {
		seen = b.State()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, breakerx.StateHalfOpen, seen)
	assert.Equal(t, breakerx.StateClosed, b.State())
	assert.Zero(t, b.Stats().FailureCount)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, clk := newBreaker(1)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	clk.Advance(time.Minute)
	require.ErrorIs(t, b.Do(ctx, fail), errDown)

	stats := b.Stats()
	assert.Equal(t, breakerx.StateOpen, stats.State)
	require.NotNil(t, stats.NextAttemptTime)
	assert.Equal(t, clk.Now().Add(time.Minute), *stats.NextAttemptTime)
}

func TestHalfOpenAllowsOneProbe(t *testing.T) {
	b, clk := newBreaker(1)
	ctx := context.Background()

	require.Error(t, b.Do(ctx, fail))
	clk.Advance(time.Minute)

	release := make(chan struct{})
	probing := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(probing)
			<-release
			return nil
		})
	}()
	<-probing

	assert.True(t, breakerx.IsOpen(b.Do(ctx, succeed)))
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, breakerx.StateClosed, b.State())
}

// blocked starts a call through b that waits for release and returns result.
func blocked(b *breakerx.Breaker, result error) (release func(), done <-chan error) {
	started := make(chan struct{})
	gate := make(chan struct{})
	out := make(chan error, 1)
	go func() {
		out <- b.Do(context.Background(), func(context.Context) error {
			close(started)
			<-gate
			return result
		})
	}()
	<-started
	return func() { close(gate) }, out
}

func TestCallsFromBeforeTripDoNotSettleHalfOpen(t *testing.T) {
	b, clk := newBreaker(2)
	ctx := context.Background()

	releaseStale, staleDone := blocked(b, nil)

	require.Error(t, b.Do(ctx, fail))
	require.Error(t, b.Do(ctx, fail))
	require.Equal(t, breakerx.StateOpen, b.State())
	clk.Advance(time.Minute)

	releaseTrial, trialDone := blocked(b, errDown)
	require.Equal(t, breakerx.StateHalfOpen, b.State())

	releaseStale()
	require.NoError(t, <-staleDone)
	assert.Equal(t, breakerx.StateHalfOpen, b.State())
	assert.True(t, breakerx.IsOpen(b.Do(ctx, succeed)), "trial call still in flight")

	releaseTrial()
	require.ErrorIs(t, <-trialDone, errDown)
	assert.Equal(t, breakerx.StateOpen, b.State())
}

func TestResetDropsOutcomesOfEarlierCalls(t *testing.T) {
	b, _ := newBreaker(2)
	ctx := context.Background()

	release, done := blocked(b, errDown)
	require.Error(t, b.Do(ctx, fail))
	b.Reset()

	release()
	require.ErrorIs(t, <-done, errDown)
	assert.Equal(t, 0, b.Stats().FailureCount)
	assert.Equal(t, breakerx.StateClosed, b.State())
}

func TestExpectedErrorsAreIgnored(t *testing.T) {
	invalid := errors.New("invalid input")
	clk := &clock{t: time.Now()}
	b := breakerx.New("x", breakerx.Options{
		FailureThreshold: 1,
		IsExpected:       func(err error) bool { return errors.Is(err, invalid) },
		Now:              clk.Now,
	})

	err := b.Do(context.Background(), func(context.Context) error { return invalid })
	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, breakerx.StateClosed, b.State())
	assert.Zero(t, b.Stats().FailureCount)
}

func TestForceAndReset(t *testing.T) {
	b, _ := newBreaker(3)
	b.ForceOpen()
	assert.Equal(t, breakerx.StateOpen, b.State())
	b.ForceClose()
	assert.Equal(t, breakerx.StateClosed, b.State())

	require.Error(t, b.Do(context.Background(), fail))
	b.Reset()
	assert.Zero(t, b.Stats().FailureCount)
	assert.Nil(t, b.Stats().LastFailureTime)
}

func TestRegistrySharesBreakersByName(t *testing.T) {
	r := breakerx.NewRegistry(breakerx.Options{FailureThreshold: 2})

	a := r.Get("content-generation")
	assert.Same(t, a, r.Get("content-generation"))
	assert.NotSame(t, a, r.Get("record-store"))

	a.ForceOpen()
	stats := r.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "content-generation", stats[0].Name)
	assert.Equal(t, breakerx.StateOpen, stats[0].State)

	require.NoError(t, r.Reset("content-generation"))
	assert.Equal(t, breakerx.StateClosed, a.State())

	_, err := r.Lookup("nope")
	assert.Error(t, err)
}
