package jobxredis

import "github.com/redis/go-redis/v9"

// Job hashes are addressed as ARGV prefix .. id, so these scripts assume a
// single-node Redis (or keys pinned to one slot).

// claimScript pops the lowest scored waiting job and marks it active.
// KEYS: wait, active, paused. ARGV: now ms, job key prefix.
var claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 1 then
    return false
end
local ids = redis.call('ZRANGE', KEYS[1], 0, 0)
if #ids == 0 then
    return false
end
local id = ids[1]
local jk = ARGV[2] .. id
redis.call('ZREM', KEYS[1], id)
redis.call('ZADD', KEYS[2], ARGV[1], id)
redis.call('HSET', jk, 'state', 'active', 'started_at', ARGV[1], 'updated_at', ARGV[1], 'finished_at', '0', 'progress', '0')
redis.call('HINCRBY', jk, 'attempts', 1)
return id
`)

// finishScript moves an active job to a terminal set and trims that set.
// KEYS: active, terminal. ARGV: id, now ms, keep, prefix, state, result, error.
// Returns -1 when the job was not active, otherwise the number trimmed.
var finishScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
    return -1
end
local jk = ARGV[4] .. ARGV[1]
redis.call('HSET', jk, 'state', ARGV[5], 'finished_at', ARGV[2], 'updated_at', ARGV[2], 'result', ARGV[6], 'error', ARGV[7])
if ARGV[5] == 'completed' then
    redis.call('HSET', jk, 'progress', '100')
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
local keep = tonumber(ARGV[3])
local n = redis.call('ZCARD', KEYS[2])
if keep < 0 or n <= keep then
    return 0
end
local old = redis.call('ZRANGE', KEYS[2], 0, n - keep - 1)
for _, oid in ipairs(old) do
    redis.call('DEL', ARGV[4] .. oid)
end
redis.call('ZREMRANGEBYRANK', KEYS[2], 0, n - keep - 1)
return #old
`)

// rescheduleScript moves an active job to delayed.
// KEYS: active, delayed. ARGV: id, now ms, until ms, prefix, error, refund.
var rescheduleScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
    return -1
end
local jk = ARGV[4] .. ARGV[1]
redis.call('HSET', jk, 'state', 'delayed', 'delay_until', ARGV[3], 'updated_at', ARGV[2], 'error', ARGV[5])
if ARGV[6] == '1' then
    redis.call('HINCRBY', jk, 'attempts', -1)
    redis.call('HINCRBY', jk, 'deferrals', 1)
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// progressScript sets progress only while the job is active.
// ARGV: job key, progress, now ms.
var progressScript = redis.NewScript(`
local st = redis.call('HGET', ARGV[1], 'state')
if not st then
    return 0
end
if st ~= 'active' then
    return -1
end
redis.call('HSET', ARGV[1], 'progress', ARGV[2], 'updated_at', ARGV[3])
return 1
`)

// promoteScript moves due delayed jobs to waiting using their stored
// wait score. KEYS: delayed, wait. ARGV: now ms, prefix, batch size.
var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
for _, id in ipairs(ids) do
    local jk = ARGV[2] .. id
    local score = redis.call('HGET', jk, 'wait_score')
    redis.call('ZREM', KEYS[1], id)
    if score then
        redis.call('ZADD', KEYS[2], score, id)
        redis.call('HSET', jk, 'state', 'waiting', 'updated_at', ARGV[1])
    end
end
return #ids
`)

// retryFailedScript puts a failed job back in waiting with a clean slate.
// KEYS: failed, wait. ARGV: id, job key, now ms.
var retryFailedScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
    return 0
end
local score = redis.call('HGET', ARGV[2], 'wait_score')
redis.call('HSET', ARGV[2], 'state', 'waiting', 'attempts', '0', 'deferrals', '0', 'progress', '0',
    'error', '', 'result', '', 'started_at', '0', 'finished_at', '0', 'delay_until', '0', 'updated_at', ARGV[3])
redis.call('ZADD', KEYS[2], score, ARGV[1])
return 1
`)

// removeScript deletes a job unless it is active.
// KEYS: wait, delayed, completed, failed. ARGV: id, job key.
var removeScript = redis.NewScript(`
local st = redis.call('HGET', ARGV[2], 'state')
if not st then
    return 0
end
if st == 'active' then
    return -1
end
for i = 1, 4 do
    redis.call('ZREM', KEYS[i], ARGV[1])
end
redis.call('DEL', ARGV[2])
return 1
`)

// cleanScript deletes the given ids if they are still in the terminal set
// and returns the ids it removed. KEYS: terminal. ARGV: prefix, ids...
var cleanScript = redis.NewScript(`
local removed = {}
for i = 2, #ARGV do
    local id = ARGV[i]
    if redis.call('ZREM', KEYS[1], id) == 1 then
        redis.call('DEL', ARGV[1] .. id)
        table.insert(removed, id)
    end
end
return removed
`)

// stalledScript reclaims active jobs whose updated_at is before the cutoff.
// KEYS: active, wait, failed. ARGV: cutoff ms, now ms, prefix, keep, error.
// Returns {requeued, failed}.
var stalledScript = redis.NewScript(`
local requeued, failed = 0, 0
local cutoff = tonumber(ARGV[1])
for _, id in ipairs(redis.call('ZRANGE', KEYS[1], 0, -1)) do
    local jk = ARGV[3] .. id
    local f = redis.call('HMGET', jk, 'updated_at', 'attempts', 'max_attempts', 'wait_score')
    if tonumber(f[1] or '0') < cutoff then
        redis.call('ZREM', KEYS[1], id)
        if tonumber(f[2] or '0') >= tonumber(f[3] or '0') then
            redis.call('HSET', jk, 'state', 'failed', 'finished_at', ARGV[2], 'updated_at', ARGV[2], 'error', ARGV[5])
            redis.call('ZADD', KEYS[3], ARGV[2], id)
            failed = failed + 1
        else
            redis.call('HSET', jk, 'state', 'waiting', 'progress', '0', 'started_at', '0', 'updated_at', ARGV[2], 'error', ARGV[5])
            redis.call('ZADD', KEYS[2], f[4], id)
            requeued = requeued + 1
        end
    end
end
local keep = tonumber(ARGV[4])
local n = redis.call('ZCARD', KEYS[3])
if failed > 0 and keep >= 0 and n > keep then
    local old = redis.call('ZRANGE', KEYS[3], 0, n - keep - 1)
    for _, oid in ipairs(old) do
        redis.call('DEL', ARGV[3] .. oid)
    end
    redis.call('ZREMRANGEBYRANK', KEYS[3], 0, n - keep - 1)
end
return {requeued, failed}
`)
