package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and
// billing operations.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	termsGenerated      *prometheus.CounterVec
	paymentsAllocated   *prometheus.CounterVec
	amountAllocated     *prometheus.CounterVec
	overdueTransitions  prometheus.Counter
	sweepFailures       prometheus.Counter
	sweepDuration       prometheus.Histogram
	concurrentConflicts *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	termsGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_term_generations_total",
		Help: "Installment term batches generated, by policy and whether an existing batch was restructured",
	}, []string{"policy", "restructured"})

	paymentsAllocated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payments_allocated_total",
		Help: "Payments allocated to installment terms, by allocation mode",
	}, []string{"mode"})

	amountAllocated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_amount_allocated_total",
		Help: "Monetary amount applied to installment terms, by allocation mode",
	}, []string{"mode"})

	overdueTransitions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_overdue_transitions_total",
		Help: "Installment terms flipped to overdue by the sweep",
	})

	sweepFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_overdue_sweep_account_failures_total",
		Help: "Accounts skipped by the overdue sweep because of an error",
	})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_overdue_sweep_duration_seconds",
		Help:    "Duration of overdue sweep runs",
		Buckets: prometheus.DefBuckets,
	})

	concurrentConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_concurrent_modifications_total",
		Help: "Operations rejected because the account was locked or the transaction conflicted",
	}, []string{"operation"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		termsGenerated, paymentsAllocated, amountAllocated,
		overdueTransitions, sweepFailures, sweepDuration, concurrentConflicts,
		goroutines,
	)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		termsGenerated:      termsGenerated,
		paymentsAllocated:   paymentsAllocated,
		amountAllocated:     amountAllocated,
		overdueTransitions:  overdueTransitions,
		sweepFailures:       sweepFailures,
		sweepDuration:       sweepDuration,
		concurrentConflicts: concurrentConflicts,
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

// Registry exposes the underlying registry, mainly for tests.
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTermGeneration counts a generated term batch.
func (m *MetricsService) RecordTermGeneration(policy string, restructured bool) {
	if m == nil {
		return
	}
	m.termsGenerated.WithLabelValues(policy, fmt.Sprintf("%t", restructured)).Inc()
}

// RecordAllocation counts an allocated payment and the amount applied.
func (m *MetricsService) RecordAllocation(mode string, applied float64) {
	if m == nil {
		return
	}
	m.paymentsAllocated.WithLabelValues(mode).Inc()
	if applied > 0 {
		m.amountAllocated.WithLabelValues(mode).Add(applied)
	}
}

// RecordSweep records the outcome of one overdue sweep run.
func (m *MetricsService) RecordSweep(transitioned, failedAccounts int, duration time.Duration) {
	if m == nil {
		return
	}
	m.overdueTransitions.Add(float64(transitioned))
	m.sweepFailures.Add(float64(failedAccounts))
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordConcurrentModification counts a lock or serialization conflict.
func (m *MetricsService) RecordConcurrentModification(operation string) {
	if m == nil {
		return
	}
	m.concurrentConflicts.WithLabelValues(operation).Inc()
}
