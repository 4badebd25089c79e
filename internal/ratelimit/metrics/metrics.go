package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected    prometheus.Counter
	TrackedKeys prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_ratelimit_auth_rejected_total",
			Help: "Auth action requests rejected by the per-IP limiter",
		}),
		TrackedKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_ratelimit_tracked_clients",
			Help: "Client IPs currently holding a limiter bucket",
		}),
	}
}

func (m *Metrics) IncrementRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

func (m *Metrics) SetTrackedKeys(n int) {
	if m == nil {
		return
	}
	m.TrackedKeys.Set(float64(n))
}
