// Package observability exports engine metrics to Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-gatekeeper/infrastructure/gatestore"
	"github.com/ahrav/go-gatekeeper/infrastructure/llm"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

// Namespace prefixes every exported metric.
const Namespace = "gatekeeper"

// Metric names reported by the gate validator. They mirror the constants
// in internal/application, which cannot be imported from here.
const (
	gateValidationDuration = "gate_validation_duration_seconds"
	gateValidations        = "gate_validations_total"
	gateBatchDuration      = "gate_batch_duration_seconds"
	retryRequests          = "gate_retry_requests_total"
	selfCheckScore         = "gate_self_check_score"
)

const unknownLabel = "unknown"

// PrometheusMetrics implements ports.MetricsCollector. Known metric names
// map onto dedicated vectors; anything else lands in generic vectors
// labeled by metric name.
type PrometheusMetrics struct {
	validations        *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	batchDuration      prometheus.Histogram
	retries            prometheus.Counter
	selfCheckScores    prometheus.Histogram

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	gatesLoaded prometheus.Gauge

	operationLatency *prometheus.HistogramVec
	counters         *prometheus.CounterVec
	gauges           *prometheus.GaugeVec
	histograms       *prometheus.HistogramVec
}

// NewPrometheusMetrics registers all metrics with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default handler; tests
// pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      gateValidations,
			Help:      "Gate validations by outcome (passed, failed, error).",
		}, []string{"gate_id", "outcome"}),
		validationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      gateValidationDuration,
			Help:      "Time to evaluate one gate.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"gate_id", "outcome"}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      gateBatchDuration,
			Help:      "Time to evaluate a batch of gates.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      retryRequests,
			Help:      "Number of times a retry was recommended.",
		}),
		selfCheckScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      selfCheckScore,
			Help:      "Scores returned by LLM self-checks.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),

		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      llm.MetricLLMRequests,
			Help:      "Self-check backend requests by status.",
		}, []string{"provider", "model", "status"}),
		llmLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      llm.MetricLLMLatency,
			Help:      "Self-check backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "model", "status"}),
		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      llm.MetricLLMTokens,
			Help:      "Tokens consumed by self-check requests.",
		}, []string{"provider", "model", "token_type"}),

		gatesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      gatestore.MetricGatesLoaded,
			Help:      "Number of gate definitions currently served.",
		}),

		operationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of miscellaneous operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		counters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "Counters without a dedicated metric.",
		}, []string{"metric"}),
		gauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "state",
			Help:      "Gauges without a dedicated metric.",
		}, []string{"metric"}),
		histograms: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "observations",
			Help:      "Histograms without a dedicated metric.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"metric"}),
	}
}

// RecordLatency records duration under the operation label.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter adds value to the counter for metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case gateValidations:
		pm.validations.WithLabelValues(label(labels, "gate_id"), label(labels, "outcome")).Add(value)
	case retryRequests:
		pm.retries.Add(value)
	case llm.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Add(value)
	case llm.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "token_type")).Add(value)
	default:
		pm.counters.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets the gauge for metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	switch metric {
	case gatestore.MetricGatesLoaded:
		pm.gatesLoaded.Set(value)
	default:
		pm.gauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram observes value for metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case gateValidationDuration:
		pm.validationDuration.WithLabelValues(label(labels, "gate_id"), label(labels, "outcome")).Observe(value)
	case gateBatchDuration:
		pm.batchDuration.Observe(value)
	case selfCheckScore:
		pm.selfCheckScores.Observe(value)
	case llm.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Observe(value)
	default:
		pm.histograms.WithLabelValues(metric).Observe(value)
	}
}

// label returns labels[key], or "unknown" when it is missing or empty.
func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return unknownLabel
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
