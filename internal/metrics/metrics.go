// Package metrics provides Prometheus metrics instrumentation for the controller.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Object creation results used as metric labels.
const (
	ResultCreated = "created"
	ResultExists  = "exists"
	ResultError   = "error"
)

// Reconcile outcomes used as metric labels.
const (
	StatusSuccess = "success"
	StatusInvalid = "invalid"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Collector provides metrics recording interface.
// This allows components to record metrics without direct prometheus dependency.
type Collector interface {
	// Reconcile metrics
	RecordReconcile(ctx context.Context, status string, duration time.Duration)
	RecordValidationError(ctx context.Context, field string)

	// Kubernetes API metrics
	RecordObjectCreate(ctx context.Context, kind, result string)
	RecordAPIError(ctx context.Context, kind, errorType string)

	// Bootstrap metrics
	RecordHubBootstrap(ctx context.Context, result string)
}

// prometheusCollector implements Collector using Prometheus metrics.
type prometheusCollector struct {
	reconcileDuration *prometheus.HistogramVec
	validationErrors  *prometheus.CounterVec

	objectsCreated *prometheus.CounterVec
	apiErrors      *prometheus.CounterVec

	hubBootstrap *prometheus.CounterVec
}

// NewCollector creates a new Prometheus metrics collector and registers metrics.
func NewCollector(reg prometheus.Registerer) Collector {
	c := &prometheusCollector{}
	c.initReconcileMetrics()
	c.initAPIMetrics()
	c.register(reg)

	return c
}

// RecordReconcile records the duration and outcome of a reconcile.
func (c *prometheusCollector) RecordReconcile(_ context.Context, status string, duration time.Duration) {
	c.reconcileDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordValidationError records a spec field that failed validation.
func (c *prometheusCollector) RecordValidationError(_ context.Context, field string) {
	c.validationErrors.WithLabelValues(field).Inc()
}

// RecordObjectCreate records the result of a create call for one object kind.
func (c *prometheusCollector) RecordObjectCreate(_ context.Context, kind, result string) {
	c.objectsCreated.WithLabelValues(kind, result).Inc()
}

// RecordAPIError records a failed Kubernetes API call by classified type.
func (c *prometheusCollector) RecordAPIError(_ context.Context, kind, errorType string) {
	c.apiErrors.WithLabelValues(kind, errorType).Inc()
}

// RecordHubBootstrap records the result of the startup hub creation.
func (c *prometheusCollector) RecordHubBootstrap(_ context.Context, result string) {
	c.hubBootstrap.WithLabelValues(result).Inc()
}

func (c *prometheusCollector) initReconcileMetrics() {
	c.reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamlit_reconcile_duration_seconds",
			Help:    "Duration of StreamlitApp reconciliation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)
	c.validationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlit_validation_errors_total",
			Help: "Total StreamlitApp specs rejected by field",
		},
		[]string{"field"},
	)
	c.hubBootstrap = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlit_hub_bootstrap_total",
			Help: "Hub StreamlitApp bootstrap attempts by result",
		},
		[]string{"result"},
	)
}

func (c *prometheusCollector) initAPIMetrics() {
	c.objectsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlit_objects_created_total",
			Help: "Create calls for app stack objects by kind and result",
		},
		[]string{"kind", "result"},
	)
	c.apiErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlit_api_errors_total",
			Help: "Total Kubernetes API errors by object kind and type",
		},
		[]string{"kind", "error_type"},
	)
}

func (c *prometheusCollector) register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.reconcileDuration,
		c.validationErrors,
		c.objectsCreated,
		c.apiErrors,
		c.hubBootstrap,
	)
}

// NoopCollector is a no-op implementation of Collector for testing.
type NoopCollector struct{}

// NewNoopCollector creates a new no-op collector.
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

// RecordReconcile is a no-op.
func (c *NoopCollector) RecordReconcile(_ context.Context, _ string, _ time.Duration) {}

// RecordValidationError is a no-op.
func (c *NoopCollector) RecordValidationError(_ context.Context, _ string) {}

// RecordObjectCreate is a no-op.
func (c *NoopCollector) RecordObjectCreate(_ context.Context, _, _ string) {}

// RecordAPIError is a no-op.
func (c *NoopCollector) RecordAPIError(_ context.Context, _, _ string) {}

// RecordHubBootstrap is a no-op.
func (c *NoopCollector) RecordHubBootstrap(_ context.Context, _ string) {}
