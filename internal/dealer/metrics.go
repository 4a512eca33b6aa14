package dealer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks quota consumption across all dealers.
type Metrics struct {
	quotaReserved  prometheus.Counter
	quotaExhausted prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		quotaReserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agegate_dealer_quota_reserved_total",
			Help: "Credits debited for dealer verification calls",
		}),
		quotaExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agegate_dealer_quota_exhausted_total",
			Help: "Verification calls rejected for insufficient credit balance",
		}),
	}
}

func (m *Metrics) AddQuotaReserved(cost int) { m.quotaReserved.Add(float64(cost)) }
func (m *Metrics) IncQuotaExhausted()        { m.quotaExhausted.Inc() }
