// Package metrics exposes the engine's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters. A nil *Metrics records nothing.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	Appeals            *prometheus.CounterVec
	CollaboratorErrors *prometheus.CounterVec
	SweepItems         prometheus.Counter
}

// New registers the counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ppbot",
			Name:      "transitions_total",
			Help:      "Enforcement state transitions by kind.",
		}, []string{"transition"}),
		Appeals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ppbot",
			Name:      "appeals_total",
			Help:      "Appeal requests by outcome.",
		}, []string{"outcome"}),
		CollaboratorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ppbot",
			Name:      "collaborator_errors_total",
			Help:      "Failed platform and store calls by operation and error class.",
		}, []string{"op", "class"}),
		SweepItems: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ppbot",
			Name:      "sweep_items_total",
			Help:      "Items examined by the reinstatement sweep.",
		}),
	}
}

func (m *Metrics) Transition(name string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(name).Inc()
}

func (m *Metrics) Appeal(outcome string) {
	if m == nil {
		return
	}
	m.Appeals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CollaboratorError(op, class string) {
	if m == nil {
		return
	}
	m.CollaboratorErrors.WithLabelValues(op, class).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil {
		return
	}
	m.SweepItems.Add(float64(n))
}
