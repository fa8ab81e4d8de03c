package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the query router.
type Metrics struct {
	RouteTotal           *prometheus.CounterVec
	RouteDurationMs      *prometheus.HistogramVec
	ClassificationTotal  *prometheus.CounterVec
	ConfidenceHistogram  *prometheus.HistogramVec
	ToolInvocationTotal  *prometheus.CounterVec
	ToolLatencyMs        *prometheus.HistogramVec
	FallbackTotal        *prometheus.CounterVec
	RateLimitHitTotal    *prometheus.CounterVec
	CircuitOpen          *prometheus.GaugeVec
	CatalogCollections   prometheus.Gauge
	CatalogRefreshErrors prometheus.Counter
}

// NewMetrics creates and registers all metrics on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RouteTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "queryrouter_route_total",
			Help: "Routed queries by final intent, processing path and outcome.",
		}, []string{"intent", "path", "success"}),

		RouteDurationMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queryrouter_route_duration_ms",
			Help:    "End-to-end routing duration in milliseconds.",
			Buckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"intent"}),

		ClassificationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "queryrouter_classification_total",
			Help: "Classifier decisions by intent.",
		}, []string{"intent"}),

		ConfidenceHistogram: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queryrouter_classification_confidence",
			Help:    "Classifier confidence by intent.",
			Buckets: []float64{0.5, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		}, []string{"intent"}),

		ToolInvocationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "queryrouter_tool_invocation_total",
			Help: "Tool invocations by tool and outcome (ok or failure kind).",
		}, []string{"tool", "outcome"}),

		ToolLatencyMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queryrouter_tool_latency_ms",
			Help:    "Tool invocation latency in milliseconds.",
			Buckets: []float64{1, 5, 25, 100, 250, 500, 1000, 2500, 5000, 30000, 60000},
		}, []string{"tool"}),

		FallbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "queryrouter_fallback_total",
			Help: "Fallbacks to direct generation by original intent and reason.",
		}, []string{"from", "reason"}),

		RateLimitHitTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "queryrouter_rate_limit_hit_total",
			Help: "Requests rejected by a rate limit or quota.",
		}, []string{"dimension"}),

		CircuitOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queryrouter_circuit_open",
			Help: "1 when the tool's circuit breaker is open.",
		}, []string{"tool"}),

		CatalogCollections: f.NewGauge(prometheus.GaugeOpts{
			Name: "queryrouter_catalog_collections",
			Help: "Collections in the current catalog snapshot.",
		}),

		CatalogRefreshErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "queryrouter_catalog_refresh_errors_total",
			Help: "Catalog refreshes in which every source failed.",
		}),
	}
}

// RouteLabels holds the values recorded when a query completes.
type RouteLabels struct {
	Intent     string
	Path       string
	Success    bool
	DurationMs float64
}

// RecordRoute records metrics for a completed query.
func (m *Metrics) RecordRoute(l RouteLabels) {
	m.RouteTotal.WithLabelValues(l.Intent, l.Path, strconv.FormatBool(l.Success)).Inc()
	m.RouteDurationMs.WithLabelValues(l.Intent).Observe(l.DurationMs)
}

func (m *Metrics) RecordClassification(intent string, confidence float64) {
	m.ClassificationTotal.WithLabelValues(intent).Inc()
	m.ConfidenceHistogram.WithLabelValues(intent).Observe(confidence)
}

// RecordTool records one invocation. outcome is "ok" or the failure kind.
func (m *Metrics) RecordTool(tool, outcome string, latencyMs float64) {
	m.ToolInvocationTotal.WithLabelValues(tool, outcome).Inc()
	m.ToolLatencyMs.WithLabelValues(tool).Observe(latencyMs)
}

func (m *Metrics) RecordFallback(from, reason string) {
	m.FallbackTotal.WithLabelValues(from, reason).Inc()
}

func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}

func (m *Metrics) SetCircuitOpen(tool string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitOpen.WithLabelValues(tool).Set(v)
}
