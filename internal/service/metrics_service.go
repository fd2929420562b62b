package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the substitution pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	assignments     *prometheus.CounterVec
	nameMatches     *prometheus.CounterVec
	reconciliation  *prometheus.CounterVec
	finalized       *prometheus.CounterVec
	expired         prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
}

// NewMetricsService registers the collectors on a private registry.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitute_assignments_total",
		Help: "Absence periods processed, by whether a substitute was found",
	}, []string{"outcome"})

	nameMatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "name_matches_total",
		Help: "Teacher name resolutions by matching tier",
	}, []string{"method"})

	reconciliation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_items_total",
		Help: "Report lines by reconciliation bucket",
	}, []string{"bucket"})

	finalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finalized_rows_total",
		Help: "Pending rows moved to the ledger, by result",
	}, []string{"result"})

	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "expired_rows_total",
		Help: "Pending rows marked expired by the sweep",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses, dbQueryDuration,
		assignments, nameMatches, reconciliation, finalized, expired, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		assignments:     assignments,
		nameMatches:     nameMatches,
		reconciliation:  reconciliation,
		finalized:       finalized,
		expired:         expired,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordAssignments counts covered and uncovered periods of a processing run.
func (m *MetricsService) RecordAssignments(summary models.CoverageSummary) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues("covered").Add(float64(summary.Covered))
	m.assignments.WithLabelValues("uncovered").Add(float64(summary.TotalPeriods - summary.Covered))
}

// RecordNameMatch counts one name resolution.
func (m *MetricsService) RecordNameMatch(method string) {
	if m == nil {
		return
	}
	m.nameMatches.WithLabelValues(method).Inc()
}

// RecordReconciliation counts the buckets of a change set.
func (m *MetricsService) RecordReconciliation(changes *models.ChangeSet) {
	if m == nil || changes == nil {
		return
	}
	m.reconciliation.WithLabelValues("updated").Add(float64(len(changes.Updated)))
	m.reconciliation.WithLabelValues("ai_suggestions").Add(float64(len(changes.AISuggestions)))
	m.reconciliation.WithLabelValues("unchanged").Add(float64(len(changes.Unchanged)))
	m.reconciliation.WithLabelValues("not_found").Add(float64(len(changes.NotFound)))
	m.reconciliation.WithLabelValues("match_errors").Add(float64(len(changes.MatchErrors)))
}

// RecordFinalize counts finalized and failed rows.
func (m *MetricsService) RecordFinalize(result *models.FinalizeResult) {
	if m == nil || result == nil {
		return
	}
	m.finalized.WithLabelValues("success").Add(float64(result.FinalizedCount))
	m.finalized.WithLabelValues("failed").Add(float64(result.FailedCount))
}

// RecordExpired counts rows expired by a sweep.
func (m *MetricsService) RecordExpired(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.expired.Add(float64(count))
}

// Snapshot returns aggregated counters for the health endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return models.SystemMetrics{
		CacheHitRatio: ratio,
		RequestsTotal: atomic.LoadUint64(&m.requestCount),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}
