// ABOUTME: Prometheus instrumentation for tracking outcomes
// ABOUTME: Counts every event by kind and how the tracker disposed of it

package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the events counter. The tracker swallows errors instead
// of surfacing them to callers, so this counter is the only place failures
// stay visible.
const (
	outcomeRecorded       = "recorded"
	outcomeDuplicate      = "duplicate"
	outcomeSkippedScope   = "skipped_scope"
	outcomeSkippedVariant = "skipped_variant"
	outcomeSkippedNoView  = "skipped_no_view"
	outcomeError          = "error"
)

// Metrics holds the tracker's Prometheus collectors.
type Metrics struct {
	events *prometheus.CounterVec
}

// NewMetrics creates and registers the tracking collectors on the given
// registerer. Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abtrack_track_events_total",
				Help: "Tracking events by kind (view, conversion, secondary_conversion) and outcome.",
			},
			[]string{"kind", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.events)
	}
	return m
}

// NopMetrics returns unregistered collectors, for tests and embedders that do
// not run a metrics endpoint.
func NopMetrics() *Metrics {
	return NewMetrics(nil)
}

func (m *Metrics) observe(kind, outcome string) {
	m.events.WithLabelValues(kind, outcome).Inc()
}
