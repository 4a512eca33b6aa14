package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks reconciliation outcomes per event kind.
type Metrics struct {
	processed *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		processed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_webhook_events_total",
			Help: "Reconciled webhook events by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

func (m *Metrics) IncProcessed(kind, outcome string) {
	m.processed.WithLabelValues(kind, outcome).Inc()
}
