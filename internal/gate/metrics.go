package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts gate decisions.
type Metrics struct {
	Decisions     *prometheus.CounterVec
	StoreFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_gate_decisions_total",
			Help: "Route gate outcomes by role context and kind",
		}, []string{"context", "outcome"}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_gate_session_failures_total",
			Help: "Page requests evaluated as unauthenticated because the session could not be loaded",
		}),
	}
}

func (m *Metrics) ObserveDecision(out Outcome) {
	if m == nil {
		return
	}
	rc := out.Context.String()
	if out.Kind == KindPlaceholder {
		rc = "unknown"
	}
	m.Decisions.WithLabelValues(rc, out.Kind.String()).Inc()
}

func (m *Metrics) IncrementStoreFailures() {
	if m == nil {
		return
	}
	m.StoreFailures.Inc()
}
