package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/drugcontent/pkg/jobx"
	"github.com/Abraxas-365/drugcontent/pkg/logx"
)

type QueueHealth struct {
	Queue   string   `json:"queue"`
	Healthy bool     `json:"healthy"`
	Issues  []string `json:"issues,omitempty"`
}

// Health is healthy only when every queue is.
type Health struct {
	Healthy   bool          `json:"healthy"`
	Queues    []QueueHealth `json:"queues"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Issues flattens per-queue issues as "queue: issue".
func (h Health) Issues() []string {
	var out []string
	for _, q := range h.Queues {
		for _, issue := range q.Issues {
			out = append(out, q.Queue+": "+issue)
		}
	}
	return out
}

// Health checks every monitored queue. Backend errors are reported as
// issues rather than returned.
func (m *Monitor) Health(ctx context.Context) Health {
	h := Health{Healthy: true, CheckedAt: m.now()}
	for _, q := range m.opts.Queues {
		qh := m.queueHealth(ctx, q)
		h.Healthy = h.Healthy && qh.Healthy
		h.Queues = append(h.Queues, qh)

		v := 0.0
		if qh.Healthy {
			v = 1
		}
		queueHealthy.WithLabelValues(q).Set(v)
	}
	if !h.Healthy {
		m.log.WithField("issues", h.Issues()).Warn("queues unhealthy")
	}
	return h
}

func (m *Monitor) queueHealth(ctx context.Context, queue string) QueueHealth {
	qh := QueueHealth{Queue: queue}

	counts, err := m.queue.Counts(ctx, queue)
	if err != nil {
		qh.Issues = append(qh.Issues, fmt.Sprintf("stats unavailable: %v", err))
	} else if counts.Failed > int64(m.opts.FailedThreshold) {
		qh.Issues = append(qh.Issues, fmt.Sprintf("%d failed jobs exceed threshold %d", counts.Failed, m.opts.FailedThreshold))
	}

	if n, err := m.stuck(ctx, queue); err != nil {
		qh.Issues = append(qh.Issues, fmt.Sprintf("active jobs unavailable: %v", err))
	} else if n > 0 {
		qh.Issues = append(qh.Issues, fmt.Sprintf("%d active jobs without progress for over %s", n, m.opts.StuckAfter))
	}

	paused, err := m.queue.IsPaused(ctx, queue)
	if err != nil {
		qh.Issues = append(qh.Issues, fmt.Sprintf("pause state unavailable: %v", err))
	} else if paused {
		qh.Issues = append(qh.Issues, "queue is paused")
	}

	qh.Healthy = len(qh.Issues) == 0
	if !qh.Healthy {
		m.log.WithFields(logx.Fields{"queue": queue, "issues": qh.Issues}).Debug("queue health check failed")
	}
	return qh
}

// stuck counts active jobs whose last update is older than StuckAfter.
// Progress updates refresh UpdatedAt.
func (m *Monitor) stuck(ctx context.Context, queue string) (int, error) {
	active, err := m.queue.ListJobs(ctx, queue, jobx.StateActive, 0)
	if err != nil {
		return 0, err
	}
	cutoff := m.now().Add(-m.opts.StuckAfter)
	n := 0
	for _, j := range active {
		if j.UpdatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}
