package enhancer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancer_records_processed_total",
			Help: "Drug records handled, by outcome (generated, fallback, not_found, rate_limited, retried, failed)",
		},
		[]string{"type", "outcome"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enhancer_generation_duration_seconds",
			Help:    "Time spent in the content generator, including failed calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	contentScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enhancer_content_score",
			Help:    "Score of stored content",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)
)
