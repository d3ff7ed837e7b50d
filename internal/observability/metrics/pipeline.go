package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

const namespace = "energohunt"

type PipelineMetrics struct {
	service  string
	registry *prometheus.Registry

	stageTotal        *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	recordsTotal      *prometheus.CounterVec
	mergeMismatches   prometheus.Counter
	unknownCategories prometheus.Counter
	schemaErrors      prometheus.Counter
	threshold         prometheus.Gauge
	balancedAccuracy  prometheus.Gauge
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "stage_total",
			Help:        "Pipeline stage runs by stage and status.",
			ConstLabels: constLabels,
		},
		[]string{"stage", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "stage_duration_seconds",
			Help:        "Pipeline stage duration in seconds.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)
	recordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "records_total",
			Help:        "Records loaded by partition.",
			ConstLabels: constLabels,
		},
		[]string{"partition"},
	)
	mergeMismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "propagation",
		Name:        "merge_mismatch_total",
		Help:        "Unlabeled records left without a prediction.",
		ConstLabels: constLabels,
	})
	unknownCategories := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "encoding",
		Name:        "unknown_category_total",
		Help:        "Building types unseen when the encoding was fit.",
		ConstLabels: constLabels,
	})
	schemaErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "features",
		Name:        "schema_error_total",
		Help:        "Records skipped for missing or duplicate identifiers.",
		ConstLabels: constLabels,
	})
	threshold := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "calibration",
		Name:        "best_threshold",
		Help:        "Decision threshold selected by calibration.",
		ConstLabels: constLabels,
	})
	balancedAccuracy := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "calibration",
		Name:        "balanced_accuracy",
		Help:        "Balanced accuracy at the selected threshold.",
		ConstLabels: constLabels,
	})

	registry.MustRegister(
		stageTotal, stageDuration, recordsTotal, mergeMismatches,
		unknownCategories, schemaErrors, threshold, balancedAccuracy,
	)

	return &PipelineMetrics{
		service:           service,
		registry:          registry,
		stageTotal:        stageTotal,
		stageDuration:     stageDuration,
		recordsTotal:      recordsTotal,
		mergeMismatches:   mergeMismatches,
		unknownCategories: unknownCategories,
		schemaErrors:      schemaErrors,
		threshold:         threshold,
		balancedAccuracy:  balancedAccuracy,
	}
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *PipelineMetrics) ObserveStage(stage string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.stageTotal.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *PipelineMetrics) AddRecords(partition domain.Partition, n int) {
	m.recordsTotal.WithLabelValues(string(partition)).Add(float64(n))
}

func (m *PipelineMetrics) AddMergeMismatches(n int) {
	m.mergeMismatches.Add(float64(n))
}

func (m *PipelineMetrics) AddUnknownCategories(n int) {
	m.unknownCategories.Add(float64(n))
}

func (m *PipelineMetrics) AddSchemaErrors(n int) {
	m.schemaErrors.Add(float64(n))
}

func (m *PipelineMetrics) SetCalibration(threshold, balancedAccuracy float64) {
	m.threshold.Set(threshold)
	m.balancedAccuracy.Set(balancedAccuracy)
}
