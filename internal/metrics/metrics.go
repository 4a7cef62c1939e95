// Package metrics collects Prometheus telemetry for host probes, profile
// activation and the switch guard.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dusk-indust/esimctl/internal/capability"
	"github.com/dusk-indust/esimctl/internal/esim"
)

// Compile-time interface check.
var _ esim.Recorder = (*Collector)(nil)

// Collector implements esim.Recorder on a private registry.
type Collector struct {
	registry *prometheus.Registry

	probes             *prometheus.CounterVec
	activations        *prometheus.CounterVec
	activationDuration *prometheus.HistogramVec
	switchRejections   prometheus.Counter
	switchJoins        prometheus.Counter
}

// NewCollector creates a Collector. An empty namespace defaults to "esimctl".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "esimctl"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "probes_total",
			Help:      "Host operations attempted through the capability prober, by result",
		},
		[]string{"op", "result"},
	)

	c.activations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activation",
			Name:      "attempts_total",
			Help:      "Completed activation attempts by final strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	c.activationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "activation",
			Name:      "duration_seconds",
			Help:      "Time from activation start to completion",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"strategy", "outcome"},
	)

	c.switchRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "switch",
		Name:      "rejected_total",
		Help:      "Switch requests refused because another switch was in flight",
	})

	c.switchJoins = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "switch",
		Name:      "joined_total",
		Help:      "Switch requests that joined an in-flight switch to the same profile",
	})

	c.registry.MustRegister(
		c.probes,
		c.activations,
		c.activationDuration,
		c.switchRejections,
		c.switchJoins,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveProbe implements esim.Recorder.
func (c *Collector) ObserveProbe(op string, result capability.Result) {
	c.probes.WithLabelValues(op, string(result)).Inc()
}

// ObserveActivation implements esim.Recorder.
func (c *Collector) ObserveActivation(strategy string, outcome esim.Outcome, elapsed time.Duration) {
	c.activations.WithLabelValues(strategy, string(outcome)).Inc()
	c.activationDuration.WithLabelValues(strategy, string(outcome)).Observe(elapsed.Seconds())
}

// RecordSwitchRejected counts a switch refused by the busy guard.
func (c *Collector) RecordSwitchRejected() {
	c.switchRejections.Inc()
}

// RecordSwitchJoined counts a switch that shared an in-flight attempt.
func (c *Collector) RecordSwitchJoined() {
	c.switchJoins.Inc()
}
