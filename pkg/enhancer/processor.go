package enhancer

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/asyncx"
	"github.com/Abraxas-365/drugcontent/pkg/breakerx"
	"github.com/Abraxas-365/drugcontent/pkg/content"
	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/limitx"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
)

// Options tune the processor.
type Options struct {
	// GenerationTimeout bounds one generator call.
	GenerationTimeout time.Duration
	// RateLimitDelay is the first deferral after the content API budget
	// runs out. Later deferrals of the same job double it up to
	// RateLimitMaxDelay.
	RateLimitDelay    time.Duration
	RateLimitMaxDelay time.Duration
	// BatchItemRetries and BatchRetryBase drive in-process retries of a
	// batch item, since a batch cannot hand one record back to the queue.
	BatchItemRetries int
	BatchRetryBase   time.Duration
	Content          content.Options
}

func (o Options) withDefaults() Options {
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = 30 * time.Second
	}
	if o.RateLimitDelay <= 0 {
		o.RateLimitDelay = 24 * time.Hour
	}
	if o.RateLimitMaxDelay < o.RateLimitDelay {
		o.RateLimitMaxDelay = 7 * 24 * time.Hour
	}
	if o.BatchItemRetries < 1 {
		o.BatchItemRetries = jobx.DefaultMaxAttempts
	}
	if o.BatchRetryBase <= 0 {
		o.BatchRetryBase = time.Second
	}
	return o
}

// Processor runs the enhancement pipeline for queued jobs: load the drug,
// take a slot from the rate limiter, generate through the circuit breaker
// and store the result. Generation failures that retries cannot fix end in
// fallback content instead of a failed job.
type Processor struct {
	store     drug.Store
	generator content.Generator
	fallback  *content.Fallback
	limiter   *limitx.Limiter
	breaker   *breakerx.Breaker
	opts      Options
	log       *logx.Entry
}

func NewProcessor(
	store drug.Store,
	generator content.Generator,
	fallback *content.Fallback,
	limiter *limitx.Limiter,
	breaker *breakerx.Breaker,
	opts Options,
) *Processor {
	return &Processor{
		store:     store,
		generator: generator,
		fallback:  fallback,
		limiter:   limiter,
		breaker:   breaker,
		opts:      opts.withDefaults(),
		log:       logx.Component("enhancer"),
	}
}

// Register binds the processor's handlers on c.
func (p *Processor) Register(c *jobx.Client) {
	c.Register(JobEnhance, p.HandleRecord)
	c.Register(JobRefresh, p.HandleRecord)
	c.Register(JobBatchEnhance, p.HandleBatch)
}

// HandleRecord processes an enhance or refresh job.
func (p *Processor) HandleRecord(ctx context.Context, job *jobx.JobInfo, progress jobx.ProgressFunc) (any, error) {
	var pl Payload
	if err := job.Decode(&pl); err != nil {
		return nil, jobx.Permanent(err)
	}
	if strings.TrimSpace(pl.DrugID) == "" {
		return nil, jobx.Permanent(enhancerErrors.New(ErrInvalidPayload).
			WithDetail("job_id", job.ID).
			WithDetail("missing", "drugId"))
	}

	log := p.log.WithFields(logx.Fields{
		"job_id":  job.ID,
		"type":    job.Type,
		"drug_id": pl.DrugID,
		"attempt": job.Attempts,
	})
	started := time.Now()
	result := JobResult{DrugID: pl.DrugID, Metadata: pl.Metadata}
	done := func() JobResult {
		result.ProcessingTimeMs = time.Since(started).Milliseconds()
		return result
	}

	d, err := p.store.GetByID(ctx, pl.DrugID)
	if err != nil {
		if Classify(err) == KindNotFound {
			recordsProcessed.WithLabelValues(job.Type, "not_found").Inc()
			log.Warn("drug not found")
			result.Error = err.Error()
			return done(), jobx.Permanent(err)
		}
		return nil, err
	}
	p.report(ctx, progress, 10)

	c, err := p.generate(ctx, *d)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted, not failed: leave stored content alone and let
			// the queue run the job again.
			recordsProcessed.WithLabelValues(job.Type, "interrupted").Inc()
			log.WithError(err).Info("generation interrupted")
			return nil, ctx.Err()
		}
		kind := Classify(err)
		switch {
		case kind == KindRateLimited:
			delay := p.rateLimitDelay(job.Deferrals)
			recordsProcessed.WithLabelValues(job.Type, "rate_limited").Inc()
			log.WithField("delay", delay.String()).Warn("content API budget exhausted, deferring")
			return nil, jobx.Deferred(err, delay)
		case kind.Retryable() && job.Attempts < job.MaxAttempts:
			recordsProcessed.WithLabelValues(job.Type, "retried").Inc()
			log.WithError(err).WithField("kind", kind.String()).Info("generation failed, will retry")
			return nil, err
		}
		log.WithError(err).WithField("kind", kind.String()).Warn("generation failed, using fallback content")
		fb := p.fallback.Build(*d)
		c = &fb
	}
	p.report(ctx, progress, 70)

	if err := p.persist(ctx, d.ID, c); err != nil {
		recordsProcessed.WithLabelValues(job.Type, "failed").Inc()
		return nil, err
	}
	p.report(ctx, progress, 100)

	result.Success = true
	result.ContentGenerated = true
	result.FallbackUsed = c.FallbackUsed
	result.ContentScore = c.ContentScore
	recordsProcessed.WithLabelValues(job.Type, outcome(c)).Inc()
	log.WithFields(logx.Fields{
		"fallback":      c.FallbackUsed,
		"content_score": c.ContentScore,
	}).Info("content stored")
	return done(), nil
}

// HandleBatch processes a batch-enhance job one record at a time, pacing
// calls with the limiter's advisory delay.
func (p *Processor) HandleBatch(ctx context.Context, job *jobx.JobInfo, progress jobx.ProgressFunc) (any, error) {
	var pl BatchPayload
	if err := job.Decode(&pl); err != nil {
		return nil, jobx.Permanent(err)
	}
	if len(pl.DrugIDs) == 0 {
		return nil, jobx.Permanent(enhancerErrors.New(ErrInvalidPayload).
			WithDetail("job_id", job.ID).
			WithDetail("missing", "drugIds"))
	}

	log := p.log.WithFields(logx.Fields{"job_id": job.ID, "size": len(pl.DrugIDs)})
	log.Info("batch started")

	res := BatchJobResult{Results: make([]JobResult, 0, len(pl.DrugIDs))}
	for i, id := range pl.DrugIDs {
		if i > 0 {
			delay, err := p.limiter.OptimalDelay(ctx)
			if err != nil {
				log.WithError(err).Debug("pacing delay unavailable")
			}
			if err := asyncx.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		r := p.processItem(ctx, id, job.Type)
		r.Metadata = map[string]any{"batchIndex": i}
		if r.Success {
			res.ProcessedCount++
			if r.FallbackUsed {
				res.FallbackCount++
			}
		} else {
			res.FailedCount++
		}
		res.Results = append(res.Results, r)
		p.report(ctx, progress, (i+1)*100/len(pl.DrugIDs))
	}

	log.WithFields(logx.Fields{
		"processed": res.ProcessedCount,
		"failed":    res.FailedCount,
		"fallback":  res.FallbackCount,
	}).Info("batch finished")
	return res, nil
}

// processItem runs the pipeline for one batch record and never returns an
// error: every outcome lands in the result.
func (p *Processor) processItem(ctx context.Context, id, jobType string) (r JobResult) {
	started := time.Now()
	r.DrugID = id
	defer func() { r.ProcessingTimeMs = time.Since(started).Milliseconds() }()
	log := p.log.WithFields(logx.Fields{"drug_id": id, "type": jobType})

	d, err := p.store.GetByID(ctx, id)
	if err != nil {
		recordsProcessed.WithLabelValues(jobType, "failed").Inc()
		r.Error = err.Error()
		return r
	}

	c, err := asyncx.RetryIf(ctx, p.opts.BatchItemRetries, p.opts.BatchRetryBase,
		func(err error) bool { return Classify(err).Retryable() },
		func(ctx context.Context) (*drug.Content, error) { return p.generate(ctx, *d) },
	)
	if err != nil {
		if ctx.Err() != nil {
			r.Error = ctx.Err().Error()
			return r
		}
		if Classify(err) == KindRateLimited {
			// The missing and outdated scans pick the record up again.
			recordsProcessed.WithLabelValues(jobType, "rate_limited").Inc()
			r.Error = err.Error()
			return r
		}
		log.WithError(err).Warn("generation failed, using fallback content")
		fb := p.fallback.Build(*d)
		c = &fb
	}

	if err := p.persist(ctx, d.ID, c); err != nil {
		recordsProcessed.WithLabelValues(jobType, "failed").Inc()
		r.Error = err.Error()
		return r
	}
	recordsProcessed.WithLabelValues(jobType, outcome(c)).Inc()
	r.Success = true
	r.ContentGenerated = true
	r.FallbackUsed = c.FallbackUsed
	r.ContentScore = c.ContentScore
	return r
}

// generate takes a rate limit slot and calls the generator through the
// breaker with a hard timeout.
func (p *Processor) generate(ctx context.Context, d drug.Drug) (*drug.Content, error) {
	dec, err := p.limiter.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, limitx.Exceeded(dec.RetryAfter)
	}

	started := time.Now()
	c, err := breakerx.Execute(ctx, p.breaker, func(ctx context.Context) (*drug.Content, error) {
		return asyncx.WithTimeout(ctx, p.opts.GenerationTimeout, func(ctx context.Context) (*drug.Content, error) {
			return p.generator.Generate(ctx, d, p.opts.Content)
		})
	})
	label := "ok"
	if err != nil {
		label = Classify(err).String()
	}
	generationDuration.WithLabelValues(label).Observe(time.Since(started).Seconds())
	return c, err
}

func (p *Processor) persist(ctx context.Context, drugID string, c *drug.Content) error {
	c.DrugID = drugID
	if err := p.store.UpsertContent(ctx, drugID, *c); err != nil {
		p.log.WithError(err).WithField("drug_id", drugID).Error("failed to store content")
		return enhancerErrors.NewWithCause(ErrPersist, err).WithDetail("drug_id", drugID)
	}
	contentScore.Observe(float64(c.ContentScore))
	return nil
}

// rateLimitDelay doubles the base delay for each earlier deferral.
func (p *Processor) rateLimitDelay(deferrals int) time.Duration {
	d := p.opts.RateLimitDelay
	for i := 0; i < deferrals && d < p.opts.RateLimitMaxDelay; i++ {
		d *= 2
	}
	return min(d, p.opts.RateLimitMaxDelay)
}

func (p *Processor) report(ctx context.Context, progress jobx.ProgressFunc, pct int) {
	if progress == nil {
		return
	}
	if err := progress(ctx, pct); err != nil {
		p.log.WithError(err).Debug("progress update failed")
	}
}

func outcome(c *drug.Content) string {
	if c.FallbackUsed {
		return "fallback"
	}
	return "generated"
}
