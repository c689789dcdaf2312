package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	batchTotal    *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchInFlight prometheus.Gauge
	itemsTotal    *prometheus.CounterVec
	queueLag      *prometheus.HistogramVec
	backupsTotal  *prometheus.CounterVec

	*AnalysisMetrics
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "worker",
			Name:      "batch_process_total",
			Help:      "Total processed batches by status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pollen",
			Subsystem: "worker",
			Name:      "batch_process_duration_seconds",
			Help:      "Batch processing duration in seconds by status.",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pollen",
			Subsystem: "worker",
			Name:      "batch_process_in_flight",
			Help:      "Number of batches being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "worker",
			Name:      "batch_items_total",
			Help:      "Processed batch images.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pollen",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between batch submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	backupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "worker",
			Name:      "history_backups_total",
			Help:      "Scheduled history backups by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(batchTotal, batchDuration, batchInFlight, itemsTotal, queueLag, backupsTotal)

	return &WorkerMetrics{
		registry:        registry,
		batchTotal:      batchTotal,
		batchDuration:   batchDuration,
		batchInFlight:   batchInFlight,
		itemsTotal:      itemsTotal,
		queueLag:        queueLag,
		backupsTotal:    backupsTotal,
		AnalysisMetrics: NewAnalysisMetrics(registry, service),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatch(service string, duration time.Duration, err error) {
	m.batchInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchTotal.WithLabelValues(service, status).Inc()
	m.batchDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordBatchItem(service string) {
	m.itemsTotal.WithLabelValues(service).Inc()
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordBackup(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.backupsTotal.WithLabelValues(service, status).Inc()
}
