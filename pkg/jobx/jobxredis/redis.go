package jobxredis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const promoteBatch = 500

// RedisQueue implements jobx.Queue with one hash per job and one sorted
// set per queue and state.
type RedisQueue struct {
	rdb       redis.UniversalClient
	prefix    string
	retention jobx.Retention
	now       func() time.Time
}

type Option func(*RedisQueue)

// WithPrefix namespaces every key, default "jobx".
func WithPrefix(p string) Option {
	return func(q *RedisQueue) { q.prefix = p }
}

// WithRetention overrides the terminal job caps.
func WithRetention(r jobx.Retention) Option {
	return func(q *RedisQueue) { q.retention = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *RedisQueue) { q.now = now }
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(rdb redis.UniversalClient, opts ...Option) *RedisQueue {
	q := &RedisQueue{
		rdb:       rdb,
		prefix:    "jobx",
		retention: jobx.DefaultRetention(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

var _ jobx.Queue = (*RedisQueue)(nil)

// Key helpers
func (q *RedisQueue) jobPrefix() string         { return q.prefix + ":job:" }
func (q *RedisQueue) jobKey(id string) string   { return q.jobPrefix() + id }
func (q *RedisQueue) pausedKey(n string) string { return fmt.Sprintf("%s:{%s}:paused", q.prefix, n) }
func (q *RedisQueue) stateKey(n string, s jobx.State) string {
	return fmt.Sprintf("%s:{%s}:%s", q.prefix, n, s)
}

func ms(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func (q *RedisQueue) Enqueue(ctx context.Context, job jobx.Job) (*jobx.JobInfo, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	now := q.now()
	info := &jobx.JobInfo{
		ID:          uuid.NewString(),
		Type:        job.Type,
		Queue:       job.Queue,
		Payload:     job.Payload,
		Priority:    job.Priority,
		State:       jobx.StateWaiting,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	waitScore := jobx.WaitScore(job.Priority, now)
	if job.Delay > 0 {
		until := now.Add(job.Delay)
		info.State = jobx.StateDelayed
		info.DelayUntil = &until
	}

	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(info.ID), encode(info, waitScore))
		if info.State == jobx.StateDelayed {
			pipe.ZAdd(ctx, q.stateKey(job.Queue, jobx.StateDelayed), redis.Z{
				Score:  float64(info.DelayUntil.UnixMilli()),
				Member: info.ID,
			})
		} else {
			pipe.ZAdd(ctx, q.stateKey(job.Queue, jobx.StateWaiting), redis.Z{Score: waitScore, Member: info.ID})
		}
		return nil
	})
	if err != nil {
		return nil, jobx.Backend("enqueue", err).WithDetail("queue", job.Queue)
	}
	return info, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, queue string) (*jobx.JobInfo, error) {
	id, err := claimScript.Run(ctx, q.rdb,
		[]string{q.stateKey(queue, jobx.StateWaiting), q.stateKey(queue, jobx.StateActive), q.pausedKey(queue)},
		ms(q.now()), q.jobPrefix(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, jobx.Backend("dequeue", err).WithDetail("queue", queue)
	}
	return q.GetJob(ctx, id)
}

// queueOf reads the queue name a job belongs to.
func (q *RedisQueue) queueOf(ctx context.Context, id string) (string, error) {
	name, err := q.rdb.HGet(ctx, q.jobKey(id), "queue").Result()
	if errors.Is(err, redis.Nil) {
		return "", jobx.NotFound(id)
	}
	if err != nil {
		return "", jobx.Backend("lookup", err).WithDetail("job_id", id)
	}
	return name, nil
}

func (q *RedisQueue) Complete(ctx context.Context, id string, result []byte) error {
	return q.finish(ctx, id, jobx.StateCompleted, "", result, q.retention.KeepCompleted)
}

func (q *RedisQueue) Fail(ctx context.Context, id string, errMsg string, result []byte) error {
	return q.finish(ctx, id, jobx.StateFailed, errMsg, result, q.retention.KeepFailed)
}

func (q *RedisQueue) finish(ctx context.Context, id string, state jobx.State, errMsg string, result []byte, keep int) error {
	queue, err := q.queueOf(ctx, id)
	if err != nil {
		return err
	}
	n, err := finishScript.Run(ctx, q.rdb,
		[]string{q.stateKey(queue, jobx.StateActive), q.stateKey(queue, state)},
		id, ms(q.now()), keep, q.jobPrefix(), string(state), string(result), errMsg,
	).Int()
	if err != nil {
		return jobx.Backend("finish", err).WithDetail("job_id", id)
	}
	if n < 0 {
		return jobx.NotActive(id)
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, id string, errMsg string, delay time.Duration) error {
	return q.reschedule(ctx, id, errMsg, delay, "0")
}

func (q *RedisQueue) Defer(ctx context.Context, id string, errMsg string, delay time.Duration) error {
	return q.reschedule(ctx, id, errMsg, delay, "1")
}

func (q *RedisQueue) reschedule(ctx context.Context, id, errMsg string, delay time.Duration, refund string) error {
	queue, err := q.queueOf(ctx, id)
	if err != nil {
		return err
	}
	now := q.now()
	n, err := rescheduleScript.Run(ctx, q.rdb,
		[]string{q.stateKey(queue, jobx.StateActive), q.stateKey(queue, jobx.StateDelayed)},
		id, ms(now), ms(now.Add(delay)), q.jobPrefix(), errMsg, refund,
	).Int()
	if err != nil {
		return jobx.Backend("reschedule", err).WithDetail("job_id", id)
	}
	if n < 0 {
		return jobx.NotActive(id)
	}
	return nil
}

func (q *RedisQueue) UpdateProgress(ctx context.Context, id string, progress int) error {
	n, err := progressScript.Run(ctx, q.rdb, nil,
		q.jobKey(id), jobx.ClampProgress(progress), ms(q.now()),
	).Int()
	if err != nil {
		return jobx.Backend("progress", err).WithDetail("job_id", id)
	}
	switch n {
	case 0:
		return jobx.NotFound(id)
	case -1:
		return jobx.NotActive(id)
	}
	return nil
}

func (q *RedisQueue) PromoteScheduled(ctx context.Context, queue string, now time.Time) (int, error) {
	n, err := promoteScript.Run(ctx, q.rdb,
		[]string{q.stateKey(queue, jobx.StateDelayed), q.stateKey(queue, jobx.StateWaiting)},
		ms(now), q.jobPrefix(), promoteBatch,
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, jobx.Backend("promote", err).WithDetail("queue", queue)
	}
	return n, nil
}

func (q *RedisQueue) GetJob(ctx context.Context, id string) (*jobx.JobInfo, error) {
	fields, err := q.rdb.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, jobx.Backend("get", err).WithDetail("job_id", id)
	}
	if len(fields) == 0 {
		return nil, jobx.NotFound(id)
	}
	info, err := decode(fields)
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrDecode, err).WithDetail("job_id", id)
	}
	return info, nil
}

func (q *RedisQueue) ListJobs(ctx context.Context, queue string, state jobx.State, limit int) ([]*jobx.JobInfo, error) {
	if !state.Valid() {
		return nil, jobx.InvalidState(state)
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	key := q.stateKey(queue, state)
	var (
		ids []string
		err error
	)
	if state.Terminal() {
		ids, err = q.rdb.ZRevRange(ctx, key, 0, stop).Result()
	} else {
		ids, err = q.rdb.ZRange(ctx, key, 0, stop).Result()
	}
	if err != nil {
		return nil, jobx.Backend("list", err).WithDetail("queue", queue)
	}
	return q.load(ctx, ids)
}

// load fetches jobs by id in one pipeline, skipping ids whose hash has
// already been trimmed.
func (q *RedisQueue) load(ctx context.Context, ids []string) ([]*jobx.JobInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := q.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, q.jobKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, jobx.Backend("load", err)
	}

	jobs := make([]*jobx.JobInfo, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		info, err := decode(fields)
		if err != nil {
			return nil, redisErrors.NewWithCause(ErrDecode, err).WithDetail("job_id", ids[i])
		}
		jobs = append(jobs, info)
	}
	return jobs, nil
}

func (q *RedisQueue) Counts(ctx context.Context, queue string) (jobx.Counts, error) {
	pipe := q.rdb.Pipeline()
	cmds := make(map[jobx.State]*redis.IntCmd, len(jobx.States))
	for _, s := range jobx.States {
		cmds[s] = pipe.ZCard(ctx, q.stateKey(queue, s))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return jobx.Counts{}, jobx.Backend("counts", err).WithDetail("queue", queue)
	}
	return jobx.Counts{
		Waiting:   cmds[jobx.StateWaiting].Val(),
		Delayed:   cmds[jobx.StateDelayed].Val(),
		Active:    cmds[jobx.StateActive].Val(),
		Completed: cmds[jobx.StateCompleted].Val(),
		Failed:    cmds[jobx.StateFailed].Val(),
	}, nil
}

func (q *RedisQueue) RetryJob(ctx context.Context, id string) error {
	info, err := q.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if info.State != jobx.StateFailed {
		return jobx.NotFailed(id, info.State)
	}
	n, err := retryFailedScript.Run(ctx, q.rdb,
		[]string{q.stateKey(info.Queue, jobx.StateFailed), q.stateKey(info.Queue, jobx.StateWaiting)},
		id, q.jobKey(id), ms(q.now()),
	).Int()
	if err != nil {
		return jobx.Backend("retry", err).WithDetail("job_id", id)
	}
	if n == 0 {
		return jobx.NotFailed(id, info.State)
	}
	return nil
}

func (q *RedisQueue) RemoveJob(ctx context.Context, id string) error {
	queue, err := q.queueOf(ctx, id)
	if err != nil {
		return err
	}
	n, err := removeScript.Run(ctx, q.rdb,
		[]string{
			q.stateKey(queue, jobx.StateWaiting),
			q.stateKey(queue, jobx.StateDelayed),
			q.stateKey(queue, jobx.StateCompleted),
			q.stateKey(queue, jobx.StateFailed),
		},
		id, q.jobKey(id),
	).Int()
	if err != nil {
		return jobx.Backend("remove", err).WithDetail("job_id", id)
	}
	switch n {
	case 0:
		return jobx.NotFound(id)
	case -1:
		return jobx.ActiveRemoval(id)
	}
	return nil
}

func (q *RedisQueue) Pause(ctx context.Context, queue string) error {
	if err := q.rdb.Set(ctx, q.pausedKey(queue), "1", 0).Err(); err != nil {
		return jobx.Backend("pause", err).WithDetail("queue", queue)
	}
	return nil
}

func (q *RedisQueue) Resume(ctx context.Context, queue string) error {
	if err := q.rdb.Del(ctx, q.pausedKey(queue)).Err(); err != nil {
		return jobx.Backend("resume", err).WithDetail("queue", queue)
	}
	return nil
}

func (q *RedisQueue) IsPaused(ctx context.Context, queue string) (bool, error) {
	n, err := q.rdb.Exists(ctx, q.pausedKey(queue)).Result()
	if err != nil {
		return false, jobx.Backend("paused", err).WithDetail("queue", queue)
	}
	return n == 1, nil
}

func (q *RedisQueue) Clean(ctx context.Context, queue string, state jobx.State, olderThan time.Duration) ([]*jobx.JobInfo, error) {
	if !state.Terminal() {
		return nil, jobx.InvalidState(state)
	}
	key := q.stateKey(queue, state)
	cutoff := q.now().Add(-olderThan).UnixMilli()

	ids, err := q.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, jobx.Backend("clean", err).WithDetail("queue", queue)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	jobs, err := q.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, q.jobPrefix())
	for _, id := range ids {
		args = append(args, id)
	}
	removed, err := cleanScript.Run(ctx, q.rdb, []string{key}, args...).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, jobx.Backend("clean", err).WithDetail("queue", queue)
	}

	gone := make(map[string]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
	}
	out := jobs[:0]
	for _, j := range jobs {
		if gone[j.ID] {
			out = append(out, j)
		}
	}
	return out, nil
}

func (q *RedisQueue) RequeueStalled(ctx context.Context, queue string, olderThan time.Duration) (jobx.Stalled, error) {
	now := q.now()
	res, err := stalledScript.Run(ctx, q.rdb,
		[]string{
			q.stateKey(queue, jobx.StateActive),
			q.stateKey(queue, jobx.StateWaiting),
			q.stateKey(queue, jobx.StateFailed),
		},
		ms(now.Add(-olderThan)), ms(now), q.jobPrefix(), q.retention.KeepFailed, jobx.ErrStalledMessage,
	).Int64Slice()
	if err != nil {
		return jobx.Stalled{}, jobx.Backend("stalled", err).WithDetail("queue", queue)
	}
	if len(res) != 2 {
		return jobx.Stalled{}, jobx.Backend("stalled", errors.New("unexpected script reply")).WithDetail("queue", queue)
	}
	return jobx.Stalled{Requeued: int(res[0]), Failed: int(res[1])}, nil
}
