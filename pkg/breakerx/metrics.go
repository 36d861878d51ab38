package breakerx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "breakerx_state",
			Help: "Breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"breaker"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakerx_transitions_total",
			Help: "State transitions by target state",
		},
		[]string{"breaker", "to"},
	)
)

func stateValue(s State) float64 {
	switch s {
	case StateOpen:
		return 2
	case StateHalfOpen:
		return 1
	default:
		return 0
	}
}
