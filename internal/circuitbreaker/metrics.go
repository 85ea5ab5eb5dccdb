package circuitbreaker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inkforge_circuit_breaker_state",
			Help: "Circuit breaker state per pool (0=closed, 1=half-open, 2=open)",
		},
		[]string{"pool"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions per pool",
		},
		[]string{"pool", "from", "to"},
	)

	rejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkforge_circuit_breaker_rejections_total",
			Help: "Calls rejected without reaching the network, per pool and reason",
		},
		[]string{"pool", "reason"},
	)
)

func setStateGauge(pool string, s State) {
	stateGauge.WithLabelValues(pool).Set(float64(s))
}

func recordTransition(pool string, from, to State) {
	transitionsTotal.WithLabelValues(pool, from.String(), to.String()).Inc()
}

func recordRejection(pool string, err error) {
	reason := "open"
	if errors.Is(err, ErrTooManyRequests) {
		reason = "half_open_saturated"
	}
	rejectionsTotal.WithLabelValues(pool, reason).Inc()
}
