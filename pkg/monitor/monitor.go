// Package monitor reads queue state for operators and runs the
// administrative operations on top of jobx, limitx, breakerx and the
// scanner.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/breakerx"
	"github.com/Abraxas-365/drugcontent/pkg/fsx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/limitx"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/Abraxas-365/drugcontent/pkg/scanner"
)

type Options struct {
	// Queues lists the monitored queue names. Admin operations reject
	// any other name.
	Queues []string
	// FailedThreshold marks a queue unhealthy once it holds more failed
	// jobs than this. Keep it below the queue's failed retention cap.
	FailedThreshold int
	// StuckAfter is how long an active job may go without an update.
	StuckAfter time.Duration
	// StatsSample bounds the completed jobs read for the average
	// processing time.
	StatsSample int
}

func (o Options) withDefaults() Options {
	if o.FailedThreshold <= 0 {
		o.FailedThreshold = 25
	}
	if o.StuckAfter <= 0 {
		o.StuckAfter = 10 * time.Minute
	}
	if o.StatsSample <= 0 {
		o.StatsSample = 100
	}
	return o
}

type Monitor struct {
	queue    jobx.Queue
	opts     Options
	limiter  *limitx.Limiter
	breakers *breakerx.Registry
	scanner  *scanner.Scanner
	archive  fsx.Writer
	now      func() time.Time
	log      *logx.Entry
}

type Option func(*Monitor)

func WithLimiter(l *limitx.Limiter) Option {
	return func(m *Monitor) { m.limiter = l }
}

func WithBreakers(r *breakerx.Registry) Option {
	return func(m *Monitor) { m.breakers = r }
}

func WithScanner(s *scanner.Scanner) Option {
	return func(m *Monitor) { m.scanner = s }
}

// WithArchive writes every cleaned batch of jobs to w before it is lost.
func WithArchive(w fsx.Writer) Option {
	return func(m *Monitor) { m.archive = w }
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func New(queue jobx.Queue, opts Options, options ...Option) *Monitor {
	m := &Monitor{
		queue: queue,
		opts:  opts.withDefaults(),
		now:   time.Now,
		log:   logx.Component("monitor"),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Queues returns the monitored queue names.
func (m *Monitor) Queues() []string {
	return slices.Clone(m.opts.Queues)
}

func (m *Monitor) checkQueue(name string) error {
	if !slices.Contains(m.opts.Queues, name) {
		return unknownQueue(name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------------------

func (m *Monitor) ListJobs(ctx context.Context, queue string, state jobx.State, limit int) ([]*jobx.JobInfo, error) {
	if err := m.checkQueue(queue); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, jobx.InvalidState(state)
	}
	return m.queue.ListJobs(ctx, queue, state, limit)
}

// GetJob looks a job up by id. A job that lives in another queue is
// reported as not found.
func (m *Monitor) GetJob(ctx context.Context, queue, id string) (*jobx.JobInfo, error) {
	if err := m.checkQueue(queue); err != nil {
		return nil, err
	}
	job, err := m.queue.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Queue != queue {
		return nil, jobx.NotFound(id).WithDetail("queue", queue)
	}
	return job, nil
}

func (m *Monitor) RetryJob(ctx context.Context, queue, id string) error {
	if _, err := m.GetJob(ctx, queue, id); err != nil {
		return err
	}
	if err := m.queue.RetryJob(ctx, id); err != nil {
		return err
	}
	m.log.WithFields(logx.Fields{"queue": queue, "job_id": id}).Info("failed job requeued")
	return nil
}

// RemoveJob deletes a job that is not active.
func (m *Monitor) RemoveJob(ctx context.Context, queue, id string) error {
	if _, err := m.GetJob(ctx, queue, id); err != nil {
		return err
	}
	if err := m.queue.RemoveJob(ctx, id); err != nil {
		return err
	}
	m.log.WithFields(logx.Fields{"queue": queue, "job_id": id}).Info("job removed")
	return nil
}

func (m *Monitor) Pause(ctx context.Context, queue string) error {
	if err := m.checkQueue(queue); err != nil {
		return err
	}
	if err := m.queue.Pause(ctx, queue); err != nil {
		return err
	}
	m.log.WithField("queue", queue).Warn("queue paused")
	return nil
}

func (m *Monitor) Resume(ctx context.Context, queue string) error {
	if err := m.checkQueue(queue); err != nil {
		return err
	}
	if err := m.queue.Resume(ctx, queue); err != nil {
		return err
	}
	m.log.WithField("queue", queue).Info("queue resumed")
	return nil
}

// Clean removes jobs in a terminal state that finished more than olderThan
// ago and returns how many were removed. With an archive configured the
// removed jobs are written to <queue>/<state>/<timestamp>.json first; an
// archive failure is logged and does not undo the removal.
func (m *Monitor) Clean(ctx context.Context, queue string, state jobx.State, olderThan time.Duration) (int, error) {
	if err := m.checkQueue(queue); err != nil {
		return 0, err
	}
	if state == "" {
		state = jobx.StateCompleted
	}
	if !state.Terminal() {
		return 0, jobx.InvalidState(state)
	}
	if olderThan < 0 {
		return 0, invalidInput("olderThan cannot be negative")
	}

	removed, err := m.queue.Clean(ctx, queue, state, olderThan)
	if err != nil {
		return 0, err
	}
	n := len(removed)
	jobsCleaned.WithLabelValues(queue, string(state)).Add(float64(n))

	log := m.log.WithFields(logx.Fields{"queue": queue, "state": state, "removed": n, "older_than": olderThan.String()})
	if n > 0 && m.archive != nil {
		if path, err := m.archiveJobs(ctx, queue, state, removed); err != nil {
			log.WithError(err).Error("archiving cleaned jobs failed")
		} else {
			log = log.WithField("archive", path)
		}
	}
	log.Info("queue cleaned")
	return n, nil
}

func (m *Monitor) archiveJobs(ctx context.Context, queue string, state jobx.State, jobs []*jobx.JobInfo) (string, error) {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("%s/%s/%s.json", queue, state, m.now().UTC().Format("20060102T150405.000Z"))
	return path, m.archive.WriteFile(ctx, path, data, "application/json")
}

// ---------------------------------------------------------------------------
// Scans, rate limit, breakers
// ---------------------------------------------------------------------------

func (m *Monitor) TriggerScan(ctx context.Context, kind scanner.Kind) (*scanner.Result, error) {
	if m.scanner == nil {
		return nil, notConfigured("scanner")
	}
	return m.scanner.Scan(ctx, kind)
}

func (m *Monitor) EnqueueBatch(ctx context.Context, ids []string, processingType, initiator string) (*scanner.BatchResult, error) {
	if m.scanner == nil {
		return nil, notConfigured("scanner")
	}
	return m.scanner.EnqueueBatch(ctx, ids, processingType, initiator)
}

func (m *Monitor) RateLimitStatus(ctx context.Context) (limitx.Status, error) {
	if m.limiter == nil {
		return limitx.Status{}, notConfigured("rate limiter")
	}
	return m.limiter.Status(ctx)
}

func (m *Monitor) ResetRateLimit(ctx context.Context) error {
	if m.limiter == nil {
		return notConfigured("rate limiter")
	}
	if err := m.limiter.Reset(ctx); err != nil {
		return err
	}
	m.log.Warn("rate limit window reset")
	return nil
}

// Breakers returns every breaker, or only the named one.
func (m *Monitor) Breakers(name string) ([]breakerx.Stats, error) {
	if m.breakers == nil {
		return nil, notConfigured("circuit breakers")
	}
	if name == "" {
		return m.breakers.Stats(), nil
	}
	b, err := m.breakers.Lookup(name)
	if err != nil {
		return nil, err
	}
	return []breakerx.Stats{b.Stats()}, nil
}

func (m *Monitor) ResetBreaker(name string) error {
	if m.breakers == nil {
		return notConfigured("circuit breakers")
	}
	if err := m.breakers.Reset(name); err != nil {
		return err
	}
	m.log.WithField("breaker", name).Warn("circuit breaker reset")
	return nil
}
