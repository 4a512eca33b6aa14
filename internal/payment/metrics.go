package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks payment-side idempotency and provider health.
type Metrics struct {
	captureRepeats prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		captureRepeats: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agegate_payment_capture_repeats_total",
			Help: "Captures answered from persisted state without a provider call",
		}),
	}
}

func (m *Metrics) IncCaptureRepeats() { m.captureRepeats.Inc() }
