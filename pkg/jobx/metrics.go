package jobx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobx_jobs_processed_total",
			Help: "Jobs handled by workers, by outcome (completed, retried, deferred, failed)",
		},
		[]string{"queue", "type", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobx_job_duration_seconds",
			Help:    "Handler run time per attempt",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"queue", "type"},
	)

	jobsPromoted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobx_jobs_promoted_total",
			Help: "Delayed jobs moved to waiting",
		},
		[]string{"queue"},
	)

	jobsStalled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobx_jobs_stalled_total",
			Help: "Active jobs reclaimed from dead workers, by outcome (requeued, failed)",
		},
		[]string{"queue", "outcome"},
	)
)
