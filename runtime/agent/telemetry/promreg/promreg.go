// Package promreg registers execution-registry gauges and counters with a
// Prometheus registry, independent of the OTEL-backed telemetry.Metrics path.
// It exists because registry-level occupancy (how many executions are live
// right now) is naturally a Prometheus gauge scraped on an interval, not a
// per-request OTEL measurement.
package promreg

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles the gauges and counters the execution registry updates
// as executions are created and terminated and as subscribers are dropped.
type Collectors struct {
	ExecutionsActive      prometheus.Gauge
	ExecutionsTotal       prometheus.Counter
	SubscribersDropped    prometheus.Counter
	ExecutionsTerminated  *prometheus.CounterVec
}

// New creates and registers the collectors with reg. Passing a fresh
// *prometheus.Registry (rather than the global default) keeps repeated test
// construction from panicking on duplicate registration.
func New(reg *prometheus.Registry) *Collectors {
	c := &Collectors{
		ExecutionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planrunner_executions_active",
			Help: "Number of executions created and not yet terminated.",
		}),
		ExecutionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planrunner_executions_total",
			Help: "Total number of executions created.",
		}),
		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planrunner_subscribers_dropped_total",
			Help: "Total number of subscribers detached because their delivery buffer was full.",
		}),
		ExecutionsTerminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planrunner_executions_terminated_total",
			Help: "Total number of executions reaching a terminal status, labeled by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(c.ExecutionsActive, c.ExecutionsTotal, c.SubscribersDropped, c.ExecutionsTerminated)
	return c
}
