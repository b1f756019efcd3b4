package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors are package-level so every breaker instance shares them,
// distinguished by the target label.
var (
	// BreakerState holds the current state per target
	// (0=closed, 1=open, 2=half-open).
	BreakerState *prometheus.GaugeVec

	// BreakerTransitions counts state changes per target and edge.
	BreakerTransitions *prometheus.CounterVec

	// BreakerOpenedTotal counts trips into the open state; alerting keys
	// off this one.
	BreakerOpenedTotal *prometheus.CounterVec
)

func init() {
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Current breaker state: 0=closed,1=open,2=half-open",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_transition_total",
		Help: "Count of breaker state transitions",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_open_total",
		Help: "Number of times a breaker transitioned into open state",
	}, []string{"target"})
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
