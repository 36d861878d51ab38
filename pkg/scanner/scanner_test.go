package scanner_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/drug"
	"github.com/Abraxas-365/drugcontent/pkg/drug/druginfra"
	"github.com/Abraxas-365/drugcontent/pkg/enhancer"
	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu   sync.Mutex
	jobs []jobx.Job
	fail func(jobx.Job) bool
}

func (r *recorder) Enqueue(_ context.Context, job jobx.Job) (*jobx.JobInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil && r.fail(job) {
		return nil, errors.New("queue down")
	}
	r.jobs = append(r.jobs, job)
	return &jobx.JobInfo{ID: fmt.Sprintf("job-%d", len(r.jobs))}, nil
}

func newScanner(store drug.Store, jobs scanner.Enqueuer) *scanner.Scanner {
	return scanner.New(store, jobs, scanner.Options{},
		scanner.WithClock(func() time.Time { return now }),
		scanner.WithRand(rand.New(rand.NewPCG(1, 2))))
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, scanner.TierHigh, scanner.TierFor(0))
	assert.Equal(t, scanner.TierHigh, scanner.TierFor(7*24*time.Hour))
	assert.Equal(t, scanner.TierMedium, scanner.TierFor(7*24*time.Hour+time.Second))
	assert.Equal(t, scanner.TierMedium, scanner.TierFor(30*24*time.Hour))
	assert.Equal(t, scanner.TierLow, scanner.TierFor(30*24*time.Hour+time.Second))

	assert.Equal(t, jobx.PriorityHigh, scanner.TierHigh.Priority())
	assert.Equal(t, jobx.PriorityMedium, scanner.TierMedium.Priority())
	assert.Equal(t, jobx.PriorityLow, scanner.TierLow.Priority())
}

func TestScanMissingCapsAndBucketsByAge(t *testing.T) {
	store := druginfra.NewMemoryStore()
	for i := 0; i < 120; i++ {
		store.Seed(drug.Drug{
			ID:        fmt.Sprintf("D%03d", i),
			Name:      "Drug",
			CreatedAt: now.Add(-time.Duration(i) * 12 * time.Hour),
		})
	}
	rec := &recorder{}

	res, err := newScanner(store, rec).ScanMissing(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100, res.Found)
	assert.Equal(t, 100, res.Enqueued)
	require.Len(t, rec.jobs, 100)
	assert.Equal(t, map[string]int{"high": 15, "medium": 46, "low": 39}, res.ByPriority)

	for i, job := range rec.jobs {
		var p enhancer.Payload
		require.NoError(t, json.Unmarshal(job.Payload, &p))
		assert.Equal(t, fmt.Sprintf("D%03d", i), p.DrugID, "newest first")
		assert.Equal(t, enhancer.JobEnhance, job.Type)
		assert.Equal(t, enhancer.EnhancementQueue, job.Queue)

		switch {
		case i <= 14:
			assert.Equal(t, jobx.PriorityHigh, job.Priority)
			assert.Zero(t, job.Delay)
		case i <= 60:
			assert.Equal(t, jobx.PriorityMedium, job.Priority)
			assert.Less(t, job.Delay, 10*time.Second)
		default:
			assert.Equal(t, jobx.PriorityLow, job.Priority)
			assert.Less(t, job.Delay, time.Minute)
		}
		assert.GreaterOrEqual(t, job.Delay, time.Duration(0))
	}
}

func TestScanMissingCountsEnqueueFailures(t *testing.T) {
	store := druginfra.NewMemoryStore(
		drug.Drug{ID: "A", CreatedAt: now},
		drug.Drug{ID: "B", CreatedAt: now.Add(-time.Hour)},
	)
	rec := &recorder{fail: func(j jobx.Job) bool {
		var p enhancer.Payload
		_ = json.Unmarshal(j.Payload, &p)
		return p.DrugID == "B"
	}}

	res, err := newScanner(store, rec).ScanMissing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Enqueued)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"job-1"}, res.JobIDs)
}

func TestScanOutdatedQueuesRefreshJobs(t *testing.T) {
	store := druginfra.NewMemoryStore(
		drug.Drug{ID: "old", CreatedAt: now.AddDate(-1, 0, 0)},
		drug.Drug{ID: "weak", CreatedAt: now.AddDate(-1, 0, 0)},
		drug.Drug{ID: "fresh", CreatedAt: now.AddDate(-1, 0, 0)},
	)
	store.SeedContent(drug.Content{DrugID: "old", ContentScore: 90, LastEnhanced: now.AddDate(0, 0, -45)})
	store.SeedContent(drug.Content{DrugID: "weak", ContentScore: 40, LastEnhanced: now.AddDate(0, 0, -1)})
	store.SeedContent(drug.Content{DrugID: "fresh", ContentScore: 90, LastEnhanced: now.AddDate(0, 0, -1)})
	rec := &recorder{}

	res, err := newScanner(store, rec).Scan(context.Background(), scanner.KindOutdated)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Enqueued)
	require.Len(t, rec.jobs, 2)

	var ids []string
	for _, job := range rec.jobs {
		var p enhancer.Payload
		require.NoError(t, json.Unmarshal(job.Payload, &p))
		ids = append(ids, p.DrugID)
		assert.Equal(t, enhancer.JobRefresh, job.Type)
		assert.Equal(t, jobx.PriorityLow, job.Priority)
		assert.Less(t, job.Delay, 30*time.Second)
	}
	assert.Equal(t, []string{"old", "weak"}, ids, "oldest content first")
}

func TestScanUnknownKind(t *testing.T) {
	_, err := newScanner(druginfra.NewMemoryStore(), &recorder{}).Scan(context.Background(), "sideways")
	assert.True(t, errx.IsCode(err, scanner.ErrUnknownKind))
}

func TestEnqueueBatchChunksAndStaggers(t *testing.T) {
	rec := &recorder{}
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("D%02d", i)
	}

	res, err := newScanner(druginfra.NewMemoryStore(), rec).EnqueueBatch(context.Background(), ids, "", "ops")
	require.NoError(t, err)
	assert.Equal(t, 12, res.Total)
	assert.NotEmpty(t, res.BatchID)
	require.Len(t, rec.jobs, 3)

	sizes := []int{5, 5, 2}
	for i, job := range rec.jobs {
		assert.Equal(t, enhancer.JobBatchEnhance, job.Type)
		assert.Equal(t, enhancer.BatchQueue, job.Queue)
		assert.Equal(t, time.Duration(i)*10*time.Second, job.Delay)

		var p enhancer.BatchPayload
		require.NoError(t, json.Unmarshal(job.Payload, &p))
		assert.Len(t, p.DrugIDs, sizes[i])
		assert.Equal(t, enhancer.JobEnhance, p.ProcessingType)
		assert.Equal(t, res.BatchID, p.Metadata["batchId"])
		assert.EqualValues(t, i, p.Metadata["batchIndex"])
		assert.Equal(t, "ops", p.Metadata["initiator"])
	}
	assert.Equal(t, "D10", func() string {
		var p enhancer.BatchPayload
		_ = json.Unmarshal(rec.jobs[2].Payload, &p)
		return p.DrugIDs[0]
	}())
}

func TestEnqueueBatchRejectsEmpty(t *testing.T) {
	_, err := newScanner(druginfra.NewMemoryStore(), &recorder{}).EnqueueBatch(context.Background(), nil, "", "")
	assert.True(t, errx.IsCode(err, scanner.ErrEmptyBatch))
}

func TestSchedulerRegistersScans(t *testing.T) {
	s := newScanner(druginfra.NewMemoryStore(), &recorder{})

	sch, err := scanner.NewScheduler(s, scanner.ScheduleConfig{Missing: "0 */6 * * *", Outdated: "0 2 * * *"})
	require.NoError(t, err)
	assert.Len(t, sch.Next(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sch.Run(ctx))

	_, err = scanner.NewScheduler(s, scanner.ScheduleConfig{Missing: "every now and then"})
	assert.Error(t, err)
}
