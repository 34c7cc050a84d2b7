package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	importBatches prometheus.Counter
	importRows    *prometheus.CounterVec

	breakdownDuration prometheus.Observer
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter

	queueJobs        *prometheus.CounterVec
	queueJobDuration *prometheus.HistogramVec
}

// NewMetricsService registers the core Prometheus collectors.
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

	importBatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "import_batches_total",
		Help: "Total committed import batches",
	})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Import rows by outcome",
	}, []string{"outcome"})

	breakdownDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "breakdown_compute_seconds",
		Help:    "Duration of breakdown computations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breakdown_cache_hits_total",
		Help: "Breakdown responses served from cache",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breakdown_cache_misses_total",
		Help: "Breakdown responses computed from storage",
	})

	queueJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_total",
		Help: "Background queue jobs by outcome",
	}, []string{"queue", "outcome"})

	queueJobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queue_job_duration_seconds",
		Help:    "Duration of background queue jobs",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, importBatches, importRows,
		breakdownDuration, cacheHits, cacheMisses, queueJobs, queueJobDuration, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		importBatches:     importBatches,
		importRows:        importRows,
		breakdownDuration: breakdownDuration,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		queueJobs:         queueJobs,
		queueJobDuration:  queueJobDuration,
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

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveImportBatch records the outcome of one committed batch.
func (m *MetricsService) ObserveImportBatch(success, skipped, failed int) {
	if m == nil {
		return
	}
	m.importBatches.Inc()
	m.importRows.WithLabelValues("success").Add(float64(success))
	m.importRows.WithLabelValues("skipped").Add(float64(skipped))
	m.importRows.WithLabelValues("failed").Add(float64(failed))
}

// ObserveQueueJob records one processed background job.
func (m *MetricsService) ObserveQueueJob(queue string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failed"
	}
	m.queueJobs.WithLabelValues(queue, outcome).Inc()
	m.queueJobDuration.WithLabelValues(queue).Observe(duration.Seconds())
}

// ObserveBreakdown records a breakdown computation and its cache outcome.
func (m *MetricsService) ObserveBreakdown(duration time.Duration, cacheHit bool) {
	if m == nil {
		return
	}
	m.breakdownDuration.Observe(duration.Seconds())
	if cacheHit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
