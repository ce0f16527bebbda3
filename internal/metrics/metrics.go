// Package metrics exposes bridge activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

const namespace = "ledgerbridge"

// Collector is a bridge.Observer that records call counts, latencies and
// the number of calls in flight.
type Collector struct {
	gatherer prometheus.Gatherer

	dispatched     *prometheus.CounterVec
	completions    *prometheus.CounterVec
	protocolErrors *prometheus.CounterVec
	pending        prometheus.Gauge
	duration       *prometheus.HistogramVec
}

var _ bridge.Observer = (*Collector)(nil)

// New registers the bridge metrics with reg. Passing a fresh
// prometheus.NewRegistry keeps tests isolated from the default registry.
func New(reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)
	return &Collector{
		gatherer: reg,
		dispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "dispatched_total",
				Help:      "Calls submitted to the script environment",
			},
			[]string{"function"},
		),
		completions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "completions_total",
				Help:      "Calls completed, by outcome (ok or error code)",
			},
			[]string{"function", "outcome"},
		),
		protocolErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "protocol_errors_total",
				Help:      "Replies that could not be routed to a pending call",
			},
			[]string{"kind"},
		),
		pending: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "pending_calls",
				Help:      "Calls awaiting a reply",
			},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "call_duration_seconds",
				Help:      "Time from dispatch to completion",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"function"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// CallDispatched implements bridge.Observer.
func (c *Collector) CallDispatched(_, function, _ string) {
	c.dispatched.WithLabelValues(function).Inc()
	c.pending.Inc()
}

// CallResolved implements bridge.Observer.
func (c *Collector) CallResolved(o bridge.Outcome) {
	c.pending.Dec()
	c.completions.WithLabelValues(o.Function, OutcomeLabel(o.Err)).Inc()
	c.duration.WithLabelValues(o.Function).Observe(o.Elapsed.Seconds())
}

// ProtocolError implements bridge.Observer.
func (c *Collector) ProtocolError(kind string, _ error) {
	c.protocolErrors.WithLabelValues(kind).Inc()
}

// OutcomeLabel is "ok" for a nil error, the lower-cased bridge error code
// otherwise, and "unknown" for errors the bridge did not produce.
func OutcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	code := bridge.CodeOf(err)
	if code == "" {
		return "unknown"
	}
	return strings.ToLower(string(code))
}
