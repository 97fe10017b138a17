package events

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts relay activity.
type Metrics struct {
	Published *prometheus.CounterVec
	Failures  prometheus.Counter
	Pending   prometheus.Gauge
}

// NewMetrics creates relay metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events published to Kafka.",
		}, []string{"topic"}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Relay batches that failed to publish or acknowledge.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "outbox",
			Name:      "last_batch_size",
			Help:      "Number of pending events fetched by the last poll.",
		}),
	}
	reg.MustRegister(m.Published, m.Failures, m.Pending)
	return m
}
