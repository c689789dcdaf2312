package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/resilience"
)

// AnalysisMetrics records screening outcomes. It is shared by the api and the worker.
type AnalysisMetrics struct {
	service string

	analysesTotal      *prometheus.CounterVec
	analysisDuration   *prometheus.HistogramVec
	grainsTotal        *prometheus.CounterVec
	defaultedTotal     *prometheus.CounterVec
	rejectedTotal      *prometheus.CounterVec
	historyLoadsTotal  *prometheus.CounterVec
	retriesTotal       *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
}

func NewAnalysisMetrics(registry prometheus.Registerer, service string) *AnalysisMetrics {
	analysesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total screened images by status.",
		},
		[]string{"service", "status"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pollen",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Detection plus aggregation time per image.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service", "status"},
	)
	grainsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "analysis",
			Name:      "grains_total",
			Help:      "Counted pollen grains by class and viability.",
		},
		[]string{"service", "class", "viable"},
	)
	defaultedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "analysis",
			Name:      "defaulted_verdicts_total",
			Help:      "Crops whose classification failed and defaulted to viable.",
		},
		[]string{"service"},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "analysis",
			Name:      "rejected_detections_total",
			Help:      "Detections dropped for an unknown class index.",
		},
		[]string{"service"},
	)
	historyLoadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "history",
			Name:      "loads_total",
			Help:      "History loads by outcome.",
		},
		[]string{"service", "degraded"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried calls to external dependencies.",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes.",
		},
		[]string{"service", "operation", "state"},
	)

	registry.MustRegister(
		analysesTotal,
		analysisDuration,
		grainsTotal,
		defaultedTotal,
		rejectedTotal,
		historyLoadsTotal,
		retriesTotal,
		breakerTransitions,
	)

	return &AnalysisMetrics{
		service:            service,
		analysesTotal:      analysesTotal,
		analysisDuration:   analysisDuration,
		grainsTotal:        grainsTotal,
		defaultedTotal:     defaultedTotal,
		rejectedTotal:      rejectedTotal,
		historyLoadsTotal:  historyLoadsTotal,
		retriesTotal:       retriesTotal,
		breakerTransitions: breakerTransitions,
	}
}

func (m *AnalysisMetrics) ObserveAnalysis(status string, counts domain.ClassCounts, defaulted, rejected int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.analysesTotal.WithLabelValues(m.service, status).Inc()
	m.analysisDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())

	for name, t := range counts {
		if t.Viable > 0 {
			m.grainsTotal.WithLabelValues(m.service, string(name), "true").Add(float64(t.Viable))
		}
		if t.NonViable > 0 {
			m.grainsTotal.WithLabelValues(m.service, string(name), "false").Add(float64(t.NonViable))
		}
	}
	if defaulted > 0 {
		m.defaultedTotal.WithLabelValues(m.service).Add(float64(defaulted))
	}
	if rejected > 0 {
		m.rejectedTotal.WithLabelValues(m.service).Add(float64(rejected))
	}
}

func (m *AnalysisMetrics) ObserveHistoryLoad(degraded bool) {
	m.historyLoadsTotal.WithLabelValues(m.service, strconv.FormatBool(degraded)).Inc()
}

// ResilienceHooks exports executor retries and breaker transitions.
func (m *AnalysisMetrics) ResilienceHooks() resilience.Hooks {
	return resilience.Hooks{
		OnRetry: func(operation string, _ int) {
			m.retriesTotal.WithLabelValues(m.service, operation).Inc()
		},
		OnStateChange: func(operation string, to gobreaker.State) {
			m.breakerTransitions.WithLabelValues(m.service, operation, to.String()).Inc()
		},
	}
}
