package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all pap metrics.
const Namespace = "pap"

// Collector aggregates the orchestrator's Prometheus metrics: HTTP
// request metrics for the Server Facade, and pipeline/job/step
// execution metrics for the Engine.
type Collector struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PipelinesSubmitted *prometheus.CounterVec
	PipelinesFinished  *prometheus.CounterVec
	PipelineDuration   prometheus.Histogram

	StepsExecuted  *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	PipelinesInFlight prometheus.Gauge
}

// NewCollector creates and registers a Collector for component (e.g.
// "papd").
func NewCollector(component string) *Collector {
	return &Collector{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: component,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served by the Server Facade",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: component,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		PipelinesSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: component,
				Name:      "pipelines_submitted_total",
				Help:      "Total number of pipelines accepted for execution",
			},
			[]string{},
		),
		PipelinesFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: component,
				Name:      "pipelines_finished_total",
				Help:      "Total number of pipelines that reached a terminal state",
			},
			[]string{"status"},
		),
		PipelineDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: component,
				Name:      "pipeline_duration_seconds",
				Help:      "Wall-clock duration of a pipeline run",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		StepsExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: component,
				Name:      "steps_executed_total",
				Help:      "Total number of steps executed, by outcome",
			},
			[]string{"call", "status"},
		),
		StepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: component,
				Name:      "step_duration_seconds",
				Help:      "Step execution duration in seconds",
				Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"call"},
		),
		PipelinesInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: component,
				Name:      "pipelines_in_flight",
				Help:      "Number of pipelines currently being executed",
			},
		),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStep records a finished step execution.
func (m *Collector) RecordStep(call, status string, duration time.Duration) {
	m.StepsExecuted.WithLabelValues(call, status).Inc()
	m.StepDuration.WithLabelValues(call).Observe(duration.Seconds())
}

// RecordPipelineFinished records a pipeline reaching a terminal state.
func (m *Collector) RecordPipelineFinished(status string, duration time.Duration) {
	m.PipelinesFinished.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(duration.Seconds())
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
