package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "monitor_queue_jobs",
			Help: "Jobs per queue and state at the last stats read",
		},
		[]string{"queue", "state"},
	)

	queueHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "monitor_queue_healthy",
			Help: "1 when the last health check passed for the queue",
		},
		[]string{"queue"},
	)

	jobsCleaned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_jobs_cleaned_total",
			Help: "Terminal jobs removed by clean",
		},
		[]string{"queue", "state"},
	)
)
