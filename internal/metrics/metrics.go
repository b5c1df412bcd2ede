// Package metrics exposes the Prometheus counters and histograms the
// ARO runtime publishes for action dispatch, the event bus, and
// plugin hosts. Metrics are optional: a nil *Metrics behaves as a
// no-op collector so callers never need to check for one.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the collectors registered against a single
// prometheus.Registerer. Components hold a *Metrics rather than
// reaching for package-level globals so a test can spin up its own
// isolated registry.
type Metrics struct {
	DispatchDuration *prometheus.HistogramVec
	DispatchTotal    *prometheus.CounterVec
	EventQueueDepth  prometheus.Gauge
	PluginCallTotal  *prometheus.CounterVec
}

// New creates a Metrics bundle and registers its collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aro",
			Subsystem: "actions",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent executing a single statement's action handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"verb"}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aro",
			Subsystem: "actions",
			Name:      "dispatch_total",
			Help:      "Count of action handler invocations by verb and outcome.",
		}, []string{"verb", "outcome"}),
		EventQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aro",
			Subsystem: "eventbus",
			Name:      "queue_depth",
			Help:      "Number of events buffered in the event bus awaiting dispatch.",
		}),
		PluginCallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aro",
			Subsystem: "plugins",
			Name:      "call_total",
			Help:      "Count of plugin-provided qualifier/action invocations by plugin and outcome.",
		}, []string{"plugin", "outcome"}),
	}
	reg.MustRegister(m.DispatchDuration, m.DispatchTotal, m.EventQueueDepth, m.PluginCallTotal)
	return m
}

// ObserveDispatch records one action dispatch's duration and outcome.
// m may be nil, in which case ObserveDispatch is a no-op.
func (m *Metrics) ObserveDispatch(verb string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.DispatchDuration.WithLabelValues(verb).Observe(seconds)
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.DispatchTotal.WithLabelValues(verb, outcome).Inc()
}

// SetEventQueueDepth records the event bus's current backlog size.
func (m *Metrics) SetEventQueueDepth(n int) {
	if m == nil {
		return
	}
	m.EventQueueDepth.Set(float64(n))
}

// ObservePluginCall records one plugin invocation's outcome.
func (m *Metrics) ObservePluginCall(plugin string, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.PluginCallTotal.WithLabelValues(plugin, outcome).Inc()
}
