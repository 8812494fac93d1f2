// Package metrics provides Prometheus instrumentation for sync runs.
package metrics

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Service outcome labels.
const (
	OutcomePatched = "patched"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Collector provides metrics recording interface.
// This allows components to record metrics without direct prometheus dependency.
type Collector interface {
	// Run metrics
	RecordRunDuration(ctx context.Context, status string, duration time.Duration)
	RecordServiceOutcome(ctx context.Context, outcome string)
	RecordRenderedLines(ctx context.Context, service string, count int)

	// Kubernetes API metrics
	RecordAPICall(ctx context.Context, method, status string, duration time.Duration)
	RecordAPIError(ctx context.Context, method, errorType string)
}

// prometheusCollector implements Collector using Prometheus metrics.
type prometheusCollector struct {
	// Run metrics
	runDuration     *prometheus.HistogramVec
	servicesTotal   *prometheus.CounterVec
	renderedLines   *prometheus.GaugeVec
	lastRunUnixTime prometheus.Gauge

	// Kubernetes API metrics
	apiDuration    *prometheus.HistogramVec
	apiCallsTotal  *prometheus.CounterVec
	apiErrorsTotal *prometheus.CounterVec
}

// NewCollector creates a new Prometheus metrics collector and registers metrics.
func NewCollector(reg prometheus.Registerer) Collector {
	c := &prometheusCollector{}
	c.initRunMetrics()
	c.initAPIMetrics()
	c.register(reg)

	return c
}

// RecordRunDuration records the duration of a whole sync pass.
func (c *prometheusCollector) RecordRunDuration(_ context.Context, status string, duration time.Duration) {
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.lastRunUnixTime.SetToCurrentTime()
}

// RecordServiceOutcome counts a per-service result.
func (c *prometheusCollector) RecordServiceOutcome(_ context.Context, outcome string) {
	c.servicesTotal.WithLabelValues(outcome).Inc()
}

// RecordRenderedLines records how many annotation lines were sent for a service.
func (c *prometheusCollector) RecordRenderedLines(_ context.Context, service string, count int) {
	c.renderedLines.WithLabelValues(service).Set(float64(count))
}

// RecordAPICall records a Kubernetes API call.
func (c *prometheusCollector) RecordAPICall(_ context.Context, method, status string, duration time.Duration) {
	c.apiDuration.WithLabelValues(method).Observe(duration.Seconds())
	c.apiCallsTotal.WithLabelValues(method, status).Inc()
}

// RecordAPIError records a Kubernetes API error.
func (c *prometheusCollector) RecordAPIError(_ context.Context, method, errorType string) {
	c.apiErrorsTotal.WithLabelValues(method, errorType).Inc()
}

func (c *prometheusCollector) initRunMetrics() {
	c.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotation_sync_run_duration_seconds",
			Help:    "Duration of a full annotation sync pass",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	c.servicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_sync_services_total",
			Help: "Services processed by outcome",
		},
		[]string{"outcome"},
	)
	c.renderedLines = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "annotation_sync_rendered_lines",
			Help: "Annotation lines rendered per service",
		},
		[]string{"service"},
	)
	c.lastRunUnixTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotation_sync_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sync pass",
		},
	)
}

func (c *prometheusCollector) initAPIMetrics() {
	c.apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotation_sync_kubernetes_api_duration_seconds",
			Help:    "Duration of Kubernetes API calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method"},
	)
	c.apiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_sync_kubernetes_api_calls_total",
			Help: "Total Kubernetes API calls",
		},
		[]string{"method", "status"},
	)
	c.apiErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_sync_kubernetes_api_errors_total",
			Help: "Total Kubernetes API errors by type",
		},
		[]string{"method", "error_type"},
	)
}

func (c *prometheusCollector) register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.runDuration,
		c.servicesTotal,
		c.renderedLines,
		c.lastRunUnixTime,
		c.apiDuration,
		c.apiCallsTotal,
		c.apiErrorsTotal,
	)
}

// WriteTextfile writes everything gathered from g to path in the text
// exposition format, for pickup by the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	err := prometheus.WriteToTextfile(path, g)
	if err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}

	return nil
}

// NoopCollector is a no-op implementation of Collector for testing.
type NoopCollector struct{}

// NewNoopCollector creates a new no-op collector.
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

// RecordRunDuration is a no-op.
func (c *NoopCollector) RecordRunDuration(_ context.Context, _ string, _ time.Duration) {}

// RecordServiceOutcome is a no-op.
func (c *NoopCollector) RecordServiceOutcome(_ context.Context, _ string) {}

// RecordRenderedLines is a no-op.
func (c *NoopCollector) RecordRenderedLines(_ context.Context, _ string, _ int) {}

// RecordAPICall is a no-op.
func (c *NoopCollector) RecordAPICall(_ context.Context, _, _ string, _ time.Duration) {}

// RecordAPIError is a no-op.
func (c *NoopCollector) RecordAPIError(_ context.Context, _, _ string) {}
