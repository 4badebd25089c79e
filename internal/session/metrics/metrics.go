package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the session service's Prometheus collectors.
type Metrics struct {
	ProbeDuration prometheus.Histogram
	ProbeResults  *prometheus.CounterVec
	ProbeDiscards prometheus.Counter
	AuthActions   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProbeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_session_probe_duration_seconds",
			Help:    "Latency of session probes against the storefront API",
			Buckets: prometheus.DefBuckets,
		}),
		ProbeResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_session_probe_results_total",
			Help: "Session probe outcomes by resulting auth status",
		}, []string{"status"}),
		ProbeDiscards: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_session_probe_discarded_total",
			Help: "Probe results dropped because a newer login or logout was written first",
		}),
		AuthActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auth_actions_total",
			Help: "Auth actions (login, logout, register, password reset) by result",
		}, []string{"action", "result"}),
	}
}

func (m *Metrics) ObserveProbe(seconds float64, status string) {
	if m == nil {
		return
	}
	m.ProbeDuration.Observe(seconds)
	m.ProbeResults.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementProbeDiscards() {
	if m == nil {
		return
	}
	m.ProbeDiscards.Inc()
}

func (m *Metrics) IncrementAuthAction(action, result string) {
	if m == nil {
		return
	}
	m.AuthActions.WithLabelValues(action, result).Inc()
}
