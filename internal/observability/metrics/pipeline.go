// Package metrics provides custom Prometheus metrics for pipeline operations.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains all Prometheus metrics related to detection processing.
type PipelineMetrics struct {
	DetectionsProcessedTotal *prometheus.CounterVec   // Processed detections by outcome
	ProcessDuration          *prometheus.HistogramVec // End-to-end processing latency by outcome
	ClassificationsTotal     *prometheus.CounterVec   // Classifier calls by status (ok, fallback, error)
	ClassificationDuration   prometheus.Histogram     // Classifier call latency
	PlaybookAssignmentsTotal *prometheus.CounterVec   // Playbook assignments by risk level
	PollerRunsTotal          prometheus.Counter       // Retry poller sweeps
	PollerBacklog            prometheus.Gauge         // Unprocessed detections seen by the last sweep
	StageErrorsTotal         *prometheus.CounterVec   // Non-fatal stage errors by stage

	registry *prometheus.Registry
}

// NewPipelineMetrics creates a new instance of PipelineMetrics.
// It requires a Prometheus registry to register the metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() error {
	m.DetectionsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_detections_processed_total",
			Help: "Total number of detections processed by outcome",
		},
		[]string{"outcome"}, // outcome: success, skipped, already_processed, failed
	)

	m.ProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_process_duration_seconds",
			Help:    "End-to-end detection processing latency by outcome",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"outcome"},
	)

	m.ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_classifications_total",
			Help: "Total number of classifier calls by status",
		},
		[]string{"status"}, // status: ok, fallback, error
	)

	m.ClassificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_classification_duration_seconds",
			Help:    "Time taken for a single image classification",
			Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
	)

	m.PlaybookAssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_playbook_assignments_total",
			Help: "Total number of playbook assignments by risk level",
		},
		[]string{"risk_level"},
	)

	m.PollerRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_poller_runs_total",
			Help: "Total number of retry poller sweeps",
		},
	)

	m.PollerBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_poller_backlog",
			Help: "Number of unprocessed detections found by the last poller sweep",
		},
	)

	m.StageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_errors_total",
			Help: "Total number of non-fatal stage errors by processing stage",
		},
		[]string{"stage"}, // stage: classification, playbook, notification, metric
	)

	return nil
}

// RecordProcessed records one completed processing run.
func (m *PipelineMetrics) RecordProcessed(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DetectionsProcessedTotal.WithLabelValues(outcome).Inc()
	m.ProcessDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordClassification records one classifier call and its latency.
func (m *PipelineMetrics) RecordClassification(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(status).Inc()
	m.ClassificationDuration.Observe(duration.Seconds())
}

// RecordAssignment records one playbook assignment.
func (m *PipelineMetrics) RecordAssignment(riskLevel string) {
	if m == nil {
		return
	}
	m.PlaybookAssignmentsTotal.WithLabelValues(riskLevel).Inc()
}

// RecordPollerRun records one poller sweep and its backlog size.
func (m *PipelineMetrics) RecordPollerRun(backlog int) {
	if m == nil {
		return
	}
	m.PollerRunsTotal.Inc()
	m.PollerBacklog.Set(float64(backlog))
}

// RecordStageError records a non-fatal error in a processing stage.
func (m *PipelineMetrics) RecordStageError(stage string) {
	if m == nil {
		return
	}
	m.StageErrorsTotal.WithLabelValues(stage).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionsProcessedTotal.Collect(ch)
	m.ProcessDuration.Collect(ch)
	m.ClassificationsTotal.Collect(ch)
	m.ClassificationDuration.Collect(ch)
	m.PlaybookAssignmentsTotal.Collect(ch)
	m.PollerRunsTotal.Collect(ch)
	m.PollerBacklog.Collect(ch)
	m.StageErrorsTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionsProcessedTotal.Describe(ch)
	m.ProcessDuration.Describe(ch)
	m.ClassificationsTotal.Describe(ch)
	m.ClassificationDuration.Describe(ch)
	m.PlaybookAssignmentsTotal.Describe(ch)
	m.PollerRunsTotal.Describe(ch)
	m.PollerBacklog.Describe(ch)
	m.StageErrorsTotal.Describe(ch)
}
