package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/edt-scheduler/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP shell and the kernel.
// Every method is safe on a nil receiver.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	sessionMutations  *prometheus.CounterVec
	conflictsDetected *prometheus.CounterVec
	optimizerRuns     *prometheus.CounterVec
	optimizerDuration prometheus.Histogram
	examAllocations   *prometheus.CounterVec
	sessionsGauge     prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sessionMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edt_session_mutations_total",
		Help: "Committed session mutations by operation",
	}, []string{"op"})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edt_conflicts_detected_total",
		Help: "Blocking conflicts that rejected an operation, by kind",
	}, []string{"kind"})

	optimizerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edt_optimizer_runs_total",
		Help: "Optimizer runs by outcome",
	}, []string{"status"})

	optimizerDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edt_optimizer_duration_seconds",
		Help:    "Duration of optimizer runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	examAllocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edt_exam_allocations_total",
		Help: "Exam room allocations by completeness",
	}, []string{"complete"})

	sessionsGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edt_sessions",
		Help: "Sessions in the active term",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionMutations, conflictsDetected,
		optimizerRuns, optimizerDuration, examAllocations, sessionsGauge, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		sessionMutations:  sessionMutations,
		conflictsDetected: conflictsDetected,
		optimizerRuns:     optimizerRuns,
		optimizerDuration: optimizerDuration,
		examAllocations:   examAllocations,
		sessionsGauge:     sessionsGauge,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the collector registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordMutation counts a committed session mutation and the resulting term size.
func (m *MetricsService) RecordMutation(op string, sessions int) {
	if m == nil {
		return
	}
	m.sessionMutations.WithLabelValues(op).Inc()
	m.sessionsGauge.Set(float64(sessions))
}

// RecordConflicts counts rejected conflicts by kind.
func (m *MetricsService) RecordConflicts(conflicts []models.Conflict) {
	if m == nil {
		return
	}
	for _, c := range conflicts {
		m.conflictsDetected.WithLabelValues(string(c.Kind)).Inc()
	}
}

// RecordOptimizerRun counts a run and its duration.
func (m *MetricsService) RecordOptimizerRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.optimizerRuns.WithLabelValues(status).Inc()
	m.optimizerDuration.Observe(duration.Seconds())
}

// RecordExamAllocation counts an allocation run.
func (m *MetricsService) RecordExamAllocation(complete bool) {
	if m == nil {
		return
	}
	m.examAllocations.WithLabelValues(fmt.Sprintf("%t", complete)).Inc()
}
