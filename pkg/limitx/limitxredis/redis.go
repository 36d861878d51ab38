// Package limitxredis stores limitx windows in Redis so every worker
// process shares one budget.
package limitxredis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// acquireScript refuses at the limit, otherwise increments and re-arms the
// window expiry. Returns {allowed, count, pttl}.
var acquireScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
    return {0, current, redis.call('PTTL', KEYS[1])}
end
local count = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return {1, count, tonumber(ARGV[2])}
`)

// incrScript increments unconditionally and re-arms the expiry.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return count
`)

type Counter struct {
	rdb    redis.UniversalClient
	prefix string
}

func New(rdb redis.UniversalClient) *Counter {
	return &Counter{rdb: rdb, prefix: "ratelimit:"}
}

func (c *Counter) key(k string) string { return c.prefix + k }

func (c *Counter) Acquire(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Duration, error) {
	res, err := acquireScript.Run(ctx, c.rdb, []string{c.key(key)}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) != 3 {
		return false, 0, 0, errors.New("limitxredis: unexpected script reply")
	}
	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		ttl = 0
	}
	return res[0] == 1, int(res[1]), ttl, nil
}

func (c *Counter) Incr(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	n, err := incrScript.Run(ctx, c.rdb, []string{c.key(key)}, window.Milliseconds()).Int()
	if err != nil {
		return 0, 0, err
	}
	return n, window, nil
}

func (c *Counter) Peek(ctx context.Context, key string) (int, time.Duration, error) {
	pipe := c.rdb.Pipeline()
	get := pipe.Get(ctx, c.key(key))
	pttl := pipe.PTTL(ctx, c.key(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, err
	}

	count, err := get.Int()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	ttl := pttl.Val()
	if ttl < 0 {
		ttl = 0
	}
	return count, ttl, nil
}

func (c *Counter) Reset(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.key(key)).Err()
}
