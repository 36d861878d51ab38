package limitx_test

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/limitx"
	"github.com/Abraxas-365/drugcontent/pkg/limitx/limitxredis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func counters(t *testing.T, clk *clock) map[string]limitx.Counter {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return map[string]limitx.Counter{
		"memory": limitx.NewMemoryCounter(clk.Now),
		"redis":  limitxredis.New(rdb),
	}
}

func TestLimitBoundary(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	for name, counter := range counters(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := limitx.New(counter, limitx.Config{Key: "api", Limit: 5, Window: time.Minute}, limitx.WithClock(clk.Now))

			for i := 1; i <= 5; i++ {
				d, err := l.TryAcquire(ctx)
				require.NoError(t, err)
				assert.True(t, d.Allowed, "acquisition %d", i)
				assert.Equal(t, i, d.Status.Count)
			}

			d, err := l.TryAcquire(ctx)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, 5, d.Status.Count)
			assert.Positive(t, d.RetryAfter)

			s, err := l.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, s.Remaining)
			assert.Equal(t, 5, s.Limit)

			err = l.Acquire(ctx)
			assert.True(t, errx.IsCode(err, limitx.ErrExceeded))
			after, ok := limitx.RetryAfter(err)
			assert.True(t, ok)
			assert.Positive(t, after)

			require.NoError(t, l.Reset(ctx))
			s, err = l.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, s.Remaining)
		})
	}
}

func TestConcurrentCallersNeverOverrun(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	for name, counter := range counters(t, clk) {
		t.Run(name, func(t *testing.T) {
			l := limitx.New(counter, limitx.Config{Key: "burst", Limit: 10, Window: time.Minute})

			var allowed atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					d, err := l.TryAcquire(context.Background())
					if err == nil && d.Allowed {
						allowed.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(10), allowed.Load())
		})
	}
}

func TestMemoryWindowExpires(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	l := limitx.New(limitx.NewMemoryCounter(clk.Now), limitx.Config{Limit: 1, Window: time.Minute}, limitx.WithClock(clk.Now))
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	assert.Error(t, l.Acquire(ctx))

	clk.Advance(time.Minute)
	assert.NoError(t, l.Acquire(ctx))
}

func TestOptimalDelayTiers(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	ctx := context.Background()
	l := limitx.New(limitx.NewMemoryCounter(clk.Now),
		limitx.Config{Limit: 20, Window: time.Minute},
		limitx.WithClock(clk.Now),
		limitx.WithRand(rand.New(rand.NewPCG(1, 2))),
	)

	take := func(n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, l.RecordUsage(ctx))
		}
	}

	take(9)
	d, err := l.OptimalDelay(ctx)
	require.NoError(t, err)
	assert.Zero(t, d, "under half the budget")

	take(3) // 12 used, 8 left
	d, err = l.OptimalDelay(ctx)
	require.NoError(t, err)
	assert.Less(t, d, time.Second)

	take(4) // 16 used, 4 left
	d, err = l.OptimalDelay(ctx)
	require.NoError(t, err)
	assert.Less(t, d, 5*time.Second)

	take(4) // exhausted
	clk.Advance(20 * time.Second)
	d, err = l.OptimalDelay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, d)
}
