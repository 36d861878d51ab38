package jobxredis_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/drugcontent/pkg/jobx/jobxtest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisQueue(t *testing.T) {
	jobxtest.Run(t, func(t *testing.T, now func() time.Time, r jobx.Retention) jobx.Queue {
		_, rdb := newRedis(t)
		return jobxredis.NewRedisQueue(rdb, jobxredis.WithClock(now), jobxredis.WithRetention(r))
	})
}

func TestRedisKeyLayout(t *testing.T) {
	mr, rdb := newRedis(t)
	q := jobxredis.NewRedisQueue(rdb, jobxredis.WithPrefix("dc"))
	ctx := context.Background()

	info, err := q.Enqueue(ctx, jobx.Job{Type: "enhance", Queue: "content-enhancement", Priority: jobx.PriorityHigh})
	require.NoError(t, err)

	assert.True(t, mr.Exists("dc:job:"+info.ID))
	members, err := mr.ZMembers("dc:{content-enhancement}:waiting")
	require.NoError(t, err)
	assert.Equal(t, []string{info.ID}, members)
	assert.Equal(t, "enhance", mr.HGet("dc:job:"+info.ID, "type"))
}
