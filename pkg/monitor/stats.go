package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/asyncx"
	"github.com/Abraxas-365/drugcontent/pkg/jobx"
)

// CompletedSummary describes the most recently completed job.
type CompletedSummary struct {
	ID               string          `json:"id"`
	Type             string          `json:"type"`
	FinishedAt       time.Time       `json:"finished_at"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	Result           json.RawMessage `json:"result,omitempty"`
}

type QueueStats struct {
	Name   string      `json:"name"`
	Counts jobx.Counts `json:"counts"`
	Paused bool        `json:"paused"`
	// SuccessRate is completed / (completed + failed) as a percentage, 100
	// while nothing has finished.
	SuccessRate float64 `json:"success_rate"`
	// AvgProcessingMs averages the most recent completed jobs.
	AvgProcessingMs int64             `json:"avg_processing_ms"`
	LastCompleted   *CompletedSummary `json:"last_completed,omitempty"`
}

// Stats reads one queue.
func (m *Monitor) Stats(ctx context.Context, queue string) (*QueueStats, error) {
	if err := m.checkQueue(queue); err != nil {
		return nil, err
	}
	counts, err := m.queue.Counts(ctx, queue)
	if err != nil {
		return nil, err
	}
	paused, err := m.queue.IsPaused(ctx, queue)
	if err != nil {
		return nil, err
	}
	completed, err := m.queue.ListJobs(ctx, queue, jobx.StateCompleted, m.opts.StatsSample)
	if err != nil {
		return nil, err
	}

	st := &QueueStats{
		Name:        queue,
		Counts:      counts,
		Paused:      paused,
		SuccessRate: successRate(counts),
	}

	var total time.Duration
	var timed int64
	for _, j := range completed {
		if d := j.ProcessingTime(); d > 0 {
			total += d
			timed++
		}
		if j.FinishedAt != nil && (st.LastCompleted == nil || j.FinishedAt.After(st.LastCompleted.FinishedAt)) {
			st.LastCompleted = &CompletedSummary{
				ID:               j.ID,
				Type:             j.Type,
				FinishedAt:       *j.FinishedAt,
				ProcessingTimeMs: j.ProcessingTime().Milliseconds(),
				Result:           j.Result,
			}
		}
	}
	if timed > 0 {
		st.AvgProcessingMs = (total / time.Duration(timed)).Milliseconds()
	}

	for state, n := range map[jobx.State]int64{
		jobx.StateWaiting:   counts.Waiting,
		jobx.StateDelayed:   counts.Delayed,
		jobx.StateActive:    counts.Active,
		jobx.StateCompleted: counts.Completed,
		jobx.StateFailed:    counts.Failed,
	} {
		queueJobs.WithLabelValues(queue, string(state)).Set(float64(n))
	}
	return st, nil
}

// AllStats reads every monitored queue concurrently, in configured order.
func (m *Monitor) AllStats(ctx context.Context) ([]QueueStats, error) {
	stats, err := asyncx.Map(ctx, m.opts.Queues, func(ctx context.Context, q string) (*QueueStats, error) {
		st, err := m.Stats(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", q, err)
		}
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]QueueStats, 0, len(stats))
	for _, st := range stats {
		out = append(out, *st)
	}
	return out, nil
}

func successRate(c jobx.Counts) float64 {
	finished := c.Completed + c.Failed
	if finished == 0 {
		return 100
	}
	return float64(c.Completed) * 100 / float64(finished)
}
