package jobx

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/asyncx"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
)

// ProgressFunc reports 0–100 progress for the running job.
type ProgressFunc func(ctx context.Context, progress int) error

// HandlerFunc processes a job. The returned value is stored as the job's
// result. Errors decide what happens next: Permanent fails the job,
// Deferred reschedules it without using an attempt, anything else is
// retried with backoff until attempts run out.
type HandlerFunc func(ctx context.Context, job *JobInfo, progress ProgressFunc) (any, error)

// Client is the main entry point for enqueuing and processing jobs.
type Client struct {
	queue    Queue
	opts     WorkerOptions
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	running  bool
	log      *logx.Entry
}

// NewClient creates a new job processing client.
func NewClient(queue Queue, options ...WorkerOption) *Client {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
		log:      logx.Component("jobx"),
	}
}

// Queue returns the backend the client works against.
func (c *Client) Queue() Queue {
	return c.queue
}

// Register adds a handler for a given job type.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

// Enqueue validates and stores a job.
func (c *Client) Enqueue(ctx context.Context, job Job) (*JobInfo, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	info, err := c.queue.Enqueue(ctx, job)
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logx.Fields{
		"job_id":   info.ID,
		"type":     info.Type,
		"queue":    info.Queue,
		"priority": info.Priority,
		"delay":    job.Delay.String(),
	}).Debug("enqueued")
	return info, nil
}

// Start runs the promotion loop and every queue's workers. It blocks until
// ctx is cancelled and in-flight jobs have finished or the shutdown
// timeout has passed.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return jobxErrors.New(ErrAlreadyRunning)
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	// Jobs outlive ctx so a shutdown lets them finish; jobCancel cuts them
	// off once the shutdown timeout is spent.
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer jobCancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.promoteLoop(ctx)
	}()

	if c.opts.StalledAfter > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.stalledLoop(ctx)
		}()
	}

	for _, q := range c.opts.Queues {
		c.log.WithFields(logx.Fields{"queue": q.Name, "workers": q.Concurrency}).Info("starting workers")
		for i := 0; i < q.Concurrency; i++ {
			wg.Add(1)
			go func(queue string, id int) {
				defer wg.Done()
				c.workerLoop(ctx, jobCtx, queue, id)
			}(q.Name, i)
		}
	}

	<-ctx.Done()
	c.log.Info("shutting down workers")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.log.Info("all workers stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		c.log.Warn("shutdown timed out, cancelling in-flight jobs")
		jobCancel()
		<-done
	}
	return nil
}

func (c *Client) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.PromoteAll(ctx)
		}
	}
}

// PromoteAll promotes due delayed jobs on every configured queue.
func (c *Client) PromoteAll(ctx context.Context) {
	now := c.opts.Now()
	for _, q := range c.opts.Queues {
		n, err := c.queue.PromoteScheduled(ctx, q.Name, now)
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).WithField("queue", q.Name).Warn("promote failed")
			}
			continue
		}
		if n > 0 {
			jobsPromoted.WithLabelValues(q.Name).Add(float64(n))
		}
	}
}

func (c *Client) stalledLoop(ctx context.Context) {
	c.ReclaimStalled(ctx)
	ticker := time.NewTicker(c.opts.StalledInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ReclaimStalled(ctx)
		}
	}
}

// ReclaimStalled returns jobs orphaned by a dead worker to their queues.
// Does nothing unless WithStalledAfter is set.
func (c *Client) ReclaimStalled(ctx context.Context) {
	if c.opts.StalledAfter <= 0 {
		return
	}
	for _, q := range c.opts.Queues {
		res, err := c.queue.RequeueStalled(ctx, q.Name, c.opts.StalledAfter)
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).WithField("queue", q.Name).Warn("stalled check failed")
			}
			continue
		}
		if res.Requeued+res.Failed == 0 {
			continue
		}
		jobsStalled.WithLabelValues(q.Name, "requeued").Add(float64(res.Requeued))
		jobsStalled.WithLabelValues(q.Name, "failed").Add(float64(res.Failed))
		c.log.WithFields(logx.Fields{
			"queue":    q.Name,
			"requeued": res.Requeued,
			"failed":   res.Failed,
		}).Warn("reclaimed stalled jobs")
	}
}

func (c *Client) workerLoop(ctx, jobCtx context.Context, queue string, id int) {
	log := c.log.WithFields(logx.Fields{"queue": queue, "worker": id})
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := c.queue.Dequeue(ctx, queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("dequeue failed")
		}
		if job == nil {
			if asyncx.Sleep(ctx, c.opts.PollInterval) != nil {
				return
			}
			continue
		}

		c.ProcessJob(jobCtx, job)
	}
}

// ProcessJob runs the handler for a claimed job and records the outcome.
func (c *Client) ProcessJob(ctx context.Context, job *JobInfo) {
	log := c.log.WithFields(logx.Fields{
		"job_id":  job.ID,
		"type":    job.Type,
		"queue":   job.Queue,
		"attempt": job.Attempts,
	})

	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	if !ok {
		log.Warn("no handler registered")
		if err := c.queue.Fail(ctx, job.ID, jobxErrors.New(ErrNoHandler).Error(), nil); err != nil {
			log.WithError(err).Error("failed to mark job as failed")
		}
		jobsProcessed.WithLabelValues(job.Queue, job.Type, "failed").Inc()
		return
	}

	progress := func(ctx context.Context, p int) error {
		return c.queue.UpdateProgress(ctx, job.ID, ClampProgress(p))
	}

	started := time.Now()
	value, herr := handler(ctx, job, progress)
	jobDuration.WithLabelValues(job.Queue, job.Type).Observe(time.Since(started).Seconds())

	var result []byte
	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			log.WithError(err).Warn("result is not serialisable, dropping it")
		} else {
			result = data
		}
	}

	// The outcome is recorded even when shutdown cancelled the handler.
	outcome, err := c.settle(context.WithoutCancel(ctx), job, result, herr)
	jobsProcessed.WithLabelValues(job.Queue, job.Type, outcome).Inc()
	if err != nil {
		log.WithError(err).Errorf("failed to record %s outcome", outcome)
		return
	}

	switch outcome {
	case "completed":
		log.Debug("completed")
	case "failed":
		log.WithError(herr).Warn("failed")
	default:
		log.WithError(herr).Infof("%s", outcome)
	}
}

func (c *Client) settle(ctx context.Context, job *JobInfo, result []byte, herr error) (string, error) {
	if herr == nil {
		return "completed", c.queue.Complete(ctx, job.ID, result)
	}
	if delay, ok := DeferDelay(herr); ok {
		return "deferred", c.queue.Defer(ctx, job.ID, herr.Error(), delay)
	}
	if !IsPermanent(herr) && job.Attempts < job.MaxAttempts {
		return "retried", c.queue.Retry(ctx, job.ID, herr.Error(), Backoff(c.opts.RetryBase, job.Attempts))
	}
	return "failed", c.queue.Fail(ctx, job.ID, herr.Error(), result)
}
