package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks settlement transitions and their outcomes.
type Metrics struct {
	transitions   *prometheus.CounterVec
	invalidStates prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_settlement_transitions_total",
			Help: "Applied settlement state transitions by event",
		}, []string{"event", "to"}),
		invalidStates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agegate_settlement_invalid_transitions_total",
			Help: "Transition attempts rejected as not permitted from the current state",
		}),
	}
}

func (m *Metrics) IncTransition(event Event, to string) {
	m.transitions.WithLabelValues(string(event), to).Inc()
}

func (m *Metrics) IncInvalidState() { m.invalidStates.Inc() }
