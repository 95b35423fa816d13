// Package middleware provides the observability adapters of the recovery
// engine: a Prometheus metrics collector and OpenTelemetry model spans.
package middleware

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-sureal/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// Each instance owns its registry, so several collectors can coexist in
// one process and tests never collide on registration.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	recoverLatency     *prometheus.HistogramVec
	modelRuns          *prometheus.CounterVec
	insufficientVideos *prometheus.CounterVec
	iterations         *prometheus.GaugeVec
	rejectedSubjects   *prometheus.GaugeVec
	logLikelihood      *prometheus.GaugeVec
	operationCounter   *prometheus.CounterVec
	systemGauges       *prometheus.GaugeVec
	histograms         *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance whose metrics are
// registered, under namespace, in a fresh registry.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		registry: reg,
		recoverLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Wall time of engine operations such as one model's Recover call.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"operation", ports.LabelModel, ports.LabelOutcome},
		),
		modelRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricModelRuns,
				Help:      "Model runs by terminal outcome.",
			},
			[]string{ports.LabelModel, ports.LabelOutcome},
		),
		insufficientVideos: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      ports.MetricInsufficientVideos,
				Help:      "Videos left without an estimate for lack of observations.",
			},
			[]string{ports.LabelModel},
		),
		iterations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      ports.MetricModelIterations,
				Help:      "Solver iterations of the latest run.",
			},
			[]string{ports.LabelModel},
		),
		rejectedSubjects: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      ports.MetricRejectedSubjects,
				Help:      "Subjects rejected by the latest run.",
			},
			[]string{ports.LabelModel},
		),
		logLikelihood: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      ports.MetricLogLikelihood,
				Help:      "Final log-likelihood of the latest run.",
			},
			[]string{ports.LabelModel},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Counters without a dedicated metric.",
			},
			[]string{"metric", ports.LabelModel},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Gauges without a dedicated metric.",
			},
			[]string{"metric", ports.LabelModel},
		),
		histograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "observations",
				Help:      "Histogram observations without a dedicated metric.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"metric", ports.LabelModel},
		),
	}
}

// Registry returns the registry holding the collector's metrics.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// WriteTextfile writes the current metrics to path in the node exporter
// textfile format.
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pm.registry); err != nil {
		return ports.NewMetricsError("textfile", "write", fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	outcome := labels[ports.LabelOutcome]
	if outcome == "" {
		outcome = "unknown"
	}
	pm.recoverLatency.WithLabelValues(operation, model(labels), outcome).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricModelRuns:
		outcome := labels[ports.LabelOutcome]
		if outcome == "" {
			outcome = "unknown"
		}
		pm.modelRuns.WithLabelValues(model(labels), outcome).Add(value)
	case ports.MetricInsufficientVideos:
		pm.insufficientVideos.WithLabelValues(model(labels)).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, model(labels)).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricModelIterations:
		pm.iterations.WithLabelValues(model(labels)).Set(value)
	case ports.MetricRejectedSubjects:
		pm.rejectedSubjects.WithLabelValues(model(labels)).Set(value)
	case ports.MetricLogLikelihood:
		pm.logLikelihood.WithLabelValues(model(labels)).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric, model(labels)).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	pm.histograms.WithLabelValues(metric, model(labels)).Observe(value)
}

func model(labels map[string]string) string {
	if m := labels[ports.LabelModel]; m != "" {
		return m
	}
	return "unknown"
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
