package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type WorkerMetrics struct {
	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	eventLag       prometheus.Histogram
	storedRecords  prometheus.Counter
}

func NewWorkerMetrics(service string, registerer prometheus.Registerer) *WorkerMetrics {
	constLabels := prometheus.Labels{"service": service}

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "corpus_ingest_total",
			Help:        "Total ingested corpora by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "corpus_ingest_duration_seconds",
			Help:        "Corpus ingest duration in seconds by status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "corpus_ingest_in_flight",
			Help:        "Number of in-flight corpus ingests.",
			ConstLabels: constLabels,
		},
	)
	eventLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "event_lag_seconds",
			Help:        "Delay between corpus production and ingest start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
	)
	storedRecords := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "stored_records_total",
			Help:        "Consumer records upserted into storage.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(ingestTotal, ingestDuration, ingestInFlight, eventLag, storedRecords)

	return &WorkerMetrics{
		ingestTotal:    ingestTotal,
		ingestDuration: ingestDuration,
		ingestInFlight: ingestInFlight,
		eventLag:       eventLag,
		storedRecords:  storedRecords,
	}
}

func (m *WorkerMetrics) StartIngest() {
	m.ingestInFlight.Inc()
}

func (m *WorkerMetrics) FinishIngest(duration time.Duration, stored int, err error) {
	m.ingestInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.ingestTotal.WithLabelValues(status).Inc()
	m.ingestDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.storedRecords.Add(float64(stored))
}

func (m *WorkerMetrics) ObserveEventLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.Observe(lag.Seconds())
}
