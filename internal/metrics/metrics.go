// Package metrics exposes workflow counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "procurement"

// WorkflowMetrics implements port.WorkflowMetrics on a private registry
type WorkflowMetrics struct {
	registry *prometheus.Registry

	decisionsTotal      *prometheus.CounterVec
	advancesTotal       prometheus.Counter
	completionsTotal    *prometheus.CounterVec
	purchaseOrdersTotal *prometheus.CounterVec
}

// NewWorkflowMetrics creates and registers the workflow collectors
func NewWorkflowMetrics() *WorkflowMetrics {
	m := &WorkflowMetrics{
		registry: prometheus.NewRegistry(),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of approval decisions recorded",
			},
			[]string{"decision"},
		),
		advancesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_advancements_total",
				Help:      "Total number of times a requisition moved to its next step group",
			},
		),
		completionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requisitions_completed_total",
				Help:      "Total number of requisitions reaching a terminal status",
			},
			[]string{"status"},
		),
		purchaseOrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purchase_orders_total",
				Help:      "Total number of purchase order generation attempts",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.decisionsTotal,
		m.advancesTotal,
		m.completionsTotal,
		m.purchaseOrdersTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDecision counts an APPROVED or REJECTED decision
func (m *WorkflowMetrics) ObserveDecision(decision string) {
	m.decisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveAdvance counts a pointer advance
func (m *WorkflowMetrics) ObserveAdvance() {
	m.advancesTotal.Inc()
}

// ObserveCompletion counts a terminal status
func (m *WorkflowMetrics) ObserveCompletion(status string) {
	m.completionsTotal.WithLabelValues(status).Inc()
}

// ObservePurchaseOrder counts a generation result
func (m *WorkflowMetrics) ObservePurchaseOrder(result string) {
	m.purchaseOrdersTotal.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry
func (m *WorkflowMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *WorkflowMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var _ port.WorkflowMetrics = (*WorkflowMetrics)(nil)
