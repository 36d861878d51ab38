// Package scanner finds drugs that need content and queues enhancement jobs
// for them.
package scanner

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/enhancer"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/google/uuid"
)

// Enqueuer stores jobs. *jobx.Client satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job jobx.Job) (*jobx.JobInfo, error)
}

// Kind names a scan.
type Kind string

const (
	KindMissing  Kind = "missing"
	KindOutdated Kind = "outdated"
)

var scanErrors = errx.NewRegistry("SCANNER")

var (
	ErrUnknownKind = scanErrors.Register("UNKNOWN_KIND", errx.TypeValidation, "Unknown scan kind")
	ErrEmptyBatch  = scanErrors.Register("EMPTY_BATCH", errx.TypeValidation, "Batch has no drug ids")
)

type Options struct {
	EnhancementQueue string
	BatchQueue       string
	MissingLimit     int
	OutdatedLimit    int
	// Freshness is how old content may get before a refresh.
	Freshness time.Duration
	MinScore  int
	ChunkSize int
	// ChunkStagger delays each batch chunk one step more than the last.
	ChunkStagger time.Duration
	// RefreshJitter is the upper bound of the random delay on refresh jobs.
	RefreshJitter time.Duration
}

func (o Options) withDefaults() Options {
	if o.EnhancementQueue == "" {
		o.EnhancementQueue = enhancer.EnhancementQueue
	}
	if o.BatchQueue == "" {
		o.BatchQueue = enhancer.BatchQueue
	}
	if o.MissingLimit <= 0 {
		o.MissingLimit = 100
	}
	if o.OutdatedLimit <= 0 {
		o.OutdatedLimit = 50
	}
	if o.Freshness <= 0 {
		o.Freshness = 30 * 24 * time.Hour
	}
	if o.MinScore <= 0 {
		o.MinScore = 60
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 5
	}
	if o.ChunkStagger <= 0 {
		o.ChunkStagger = 10 * time.Second
	}
	if o.RefreshJitter <= 0 {
		o.RefreshJitter = 30 * time.Second
	}
	return o
}

// Result summarises one scan.
type Result struct {
	Kind       Kind           `json:"kind"`
	Found      int            `json:"found"`
	Enqueued   int            `json:"enqueued"`
	Failed     int            `json:"failed"`
	ByPriority map[string]int `json:"by_priority,omitempty"`
	JobIDs     []string       `json:"job_ids,omitempty"`
}

// BatchResult describes the jobs created by EnqueueBatch.
type BatchResult struct {
	BatchID string   `json:"batch_id"`
	Total   int      `json:"total"`
	JobIDs  []string `json:"job_ids"`
}

type Scanner struct {
	store drug.Store
	jobs  Enqueuer
	opts  Options
	now   func() time.Time
	log   *logx.Entry

	randMu sync.Mutex
	rand   *rand.Rand
}

type Option func(*Scanner)

func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithRand sets the jitter source.
func WithRand(r *rand.Rand) Option {
	return func(s *Scanner) { s.rand = r }
}

func New(store drug.Store, jobs Enqueuer, opts Options, options ...Option) *Scanner {
	s := &Scanner{
		store: store,
		jobs:  jobs,
		opts:  opts.withDefaults(),
		now:   time.Now,
		log:   logx.Component("scanner"),
		rand:  rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5851f42d4c957f2d)),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Scan runs the scan named by kind.
func (s *Scanner) Scan(ctx context.Context, kind Kind) (*Result, error) {
	switch kind {
	case KindMissing:
		return s.ScanMissing(ctx)
	case KindOutdated:
		return s.ScanOutdated(ctx)
	}
	return nil, scanErrors.New(ErrUnknownKind).WithDetail("kind", string(kind))
}

// ScanMissing queues an enhance job for each drug without content, newest
// first. Newer drugs get a higher priority and a shorter delay.
func (s *Scanner) ScanMissing(ctx context.Context) (*Result, error) {
	drugs, err := s.store.FindNeedingContent(ctx, s.opts.MissingLimit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := &Result{Kind: KindMissing, Found: len(drugs), ByPriority: map[string]int{}}
	for _, d := range drugs {
		tier := TierFor(d.Age(now))
		job, err := enhancer.NewRecordJob(enhancer.JobEnhance, s.opts.EnhancementQueue, enhancer.Payload{
			DrugID:         d.ID,
			ProcessingType: enhancer.JobEnhance,
			Metadata: map[string]any{
				"initiator": "scanner",
				"reason":    "missing_content",
				"priority":  tier.String(),
			},
		}, tier.Priority(), s.jitter(tier.MaxDelay()))
		if err != nil {
			res.Failed++
			continue
		}
		if s.enqueue(ctx, job, d.ID, res) {
			res.ByPriority[tier.String()]++
		}
	}

	s.log.WithFields(logx.Fields{
		"found":    res.Found,
		"enqueued": res.Enqueued,
		"failed":   res.Failed,
		"high":     res.ByPriority[TierHigh.String()],
		"medium":   res.ByPriority[TierMedium.String()],
		"low":      res.ByPriority[TierLow.String()],
	}).Info("missing content scan finished")
	return res, nil
}

// ScanOutdated queues low priority refresh jobs for drugs whose content is
// older than the freshness window or scored below the minimum.
func (s *Scanner) ScanOutdated(ctx context.Context) (*Result, error) {
	cutoff := s.now().Add(-s.opts.Freshness)
	drugs, err := s.store.FindStale(ctx, cutoff, s.opts.MinScore, s.opts.OutdatedLimit)
	if err != nil {
		return nil, err
	}

	res := &Result{Kind: KindOutdated, Found: len(drugs)}
	for _, d := range drugs {
		job, err := enhancer.NewRecordJob(enhancer.JobRefresh, s.opts.EnhancementQueue, enhancer.Payload{
			DrugID:         d.ID,
			ProcessingType: enhancer.JobRefresh,
			Metadata: map[string]any{
				"initiator": "scanner",
				"reason":    "outdated_content",
			},
		}, jobx.PriorityLow, s.jitter(s.opts.RefreshJitter))
		if err != nil {
			res.Failed++
			continue
		}
		s.enqueue(ctx, job, d.ID, res)
	}

	s.log.WithFields(logx.Fields{
		"found":    res.Found,
		"enqueued": res.Enqueued,
		"failed":   res.Failed,
		"cutoff":   cutoff.Format(time.RFC3339),
	}).Info("outdated content scan finished")
	return res, nil
}

func (s *Scanner) enqueue(ctx context.Context, job jobx.Job, drugID string, res *Result) bool {
	info, err := s.jobs.Enqueue(ctx, job)
	if err != nil {
		res.Failed++
		s.log.WithError(err).WithField("drug_id", drugID).Warn("failed to enqueue job")
		return false
	}
	res.Enqueued++
	res.JobIDs = append(res.JobIDs, info.ID)
	return true
}

// EnqueueBatch splits ids into chunks and queues one batch job per chunk,
// each dispatched one stagger step after the previous.
func (s *Scanner) EnqueueBatch(ctx context.Context, ids []string, processingType, initiator string) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, scanErrors.New(ErrEmptyBatch)
	}
	if processingType == "" {
		processingType = enhancer.JobEnhance
	}
	if initiator == "" {
		initiator = "manual"
	}

	res := &BatchResult{BatchID: uuid.NewString(), Total: len(ids)}
	for i, start := 0, 0; start < len(ids); i, start = i+1, start+s.opts.ChunkSize {
		chunk := ids[start:min(start+s.opts.ChunkSize, len(ids))]
		job, err := enhancer.NewBatchJob(s.opts.BatchQueue, enhancer.BatchPayload{
			DrugIDs:        chunk,
			ProcessingType: processingType,
			Metadata: map[string]any{
				"batchId":    res.BatchID,
				"batchIndex": i,
				"initiator":  initiator,
			},
		}, time.Duration(i)*s.opts.ChunkStagger)
		if err != nil {
			return res, err
		}
		info, err := s.jobs.Enqueue(ctx, job)
		if err != nil {
			return res, err
		}
		res.JobIDs = append(res.JobIDs, info.ID)
	}

	s.log.WithFields(logx.Fields{
		"batch_id": res.BatchID,
		"total":    res.Total,
		"jobs":     len(res.JobIDs),
	}).Info("batch enqueued")
	return res, nil
}

func (s *Scanner) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return time.Duration(s.rand.Int64N(int64(max)))
}
