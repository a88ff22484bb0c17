// Package metrics exposes inference call metrics in Prometheus format.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/hfinfer/pkg/model/inference"
)

// Collector records inference calls. It implements inference.Observer.
type Collector struct {
	registry *prometheus.Registry

	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	httpAttempts *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec

	log *slog.Logger
}

var _ inference.Observer = (*Collector)(nil)

// NewCollector creates a Collector on its own registry, so several can
// coexist in one process.
func NewCollector(namespace string, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		log:      log.With("component", "metrics"),
	}

	c.callsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of inference calls by model type and outcome",
		},
		[]string{"type", "outcome"},
	)

	c.callDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Inference call duration in seconds, including retries",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"type"},
	)

	c.httpAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_attempts_total",
			Help:      "Total number of HTTP round trips made for inference calls",
		},
		[]string{"type"},
	)

	c.httpStatus = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "Final HTTP status of inference calls",
		},
		[]string{"status"},
	)

	return c
}

// OnCall implements inference.Observer.
func (c *Collector) OnCall(ctx context.Context, e inference.CallEvent) {
	typ := string(e.Type)
	if typ == "" {
		typ = "unresolved"
	}

	c.callsTotal.WithLabelValues(typ, e.Outcome()).Inc()
	c.callDuration.WithLabelValues(typ).Observe(e.Duration.Seconds())
	if e.Attempts > 0 {
		c.httpAttempts.WithLabelValues(typ).Add(float64(e.Attempts))
	}
	if e.Status != 0 {
		c.httpStatus.WithLabelValues(strconv.Itoa(e.Status)).Inc()
	}

	c.log.DebugContext(ctx, "recorded call",
		"request_id", e.RequestID,
		"type", typ,
		"outcome", e.Outcome(),
		"duration", e.Duration)
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
