// Package metrics provides Prometheus metrics for wikiarticles.
// It tracks tool calls, Wikipedia API traffic, cache performance and lookup outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "wikiarticles"
)

var (
	// RequestsTotal counts MCP tool calls by tool name and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// RequestDuration measures tool call latency
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "request_duration_seconds",
		Help:      "Request latency distribution by tool",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"tool"})

	// RequestInFlight tracks currently executing tool calls
	RequestInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being processed",
	}, []string{"tool"})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})

	// LookupsTotal counts facade operations by outcome
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "lookups_total",
		Help:      "Article lookups by operation, language and status",
	}, []string{"operation", "language", "status"})

	// LookupErrors counts failed lookups by cause before they are flattened into an error record
	LookupErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "lookup_errors_total",
		Help:      "Failed lookups by operation and error code",
	}, []string{"operation", "error_code"})

	// WikiAPILatency measures MediaWiki API call latency
	WikiAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "wiki_api_latency_seconds",
		Help:      "Wikipedia API call latency by action",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	// WikiAPIRequestsTotal counts MediaWiki API requests
	WikiAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "wiki_api_requests_total",
		Help:      "Wikipedia API requests by action and status",
	}, []string{"action", "status"})

	// WikiAPIRetries counts transport retries
	WikiAPIRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "wiki_api_retries_total",
		Help:      "Wikipedia API retry count",
	})

	// CircuitOpenRejections counts requests rejected by the circuit breaker
	CircuitOpenRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "circuit_open_rejections_total",
		Help:      "Requests rejected because the circuit breaker was open",
	})

	// CacheHits counts in-memory cache hits
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_hits_total",
		Help:      "Total cache hit count",
	})

	// CacheMisses counts in-memory cache misses
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_misses_total",
		Help:      "Total cache miss count",
	})

	// CacheSize tracks current cache entry count
	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "cache_entries",
		Help:      "Current number of cache entries",
	})

	// CacheEvictions counts LRU evictions
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_evictions_total",
		Help:      "Total cache eviction count",
	})

	// StoreAccess counts persistent page store reads by result (hit, miss, stale, error)
	StoreAccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "store_access_total",
		Help:      "Persistent page store reads by result",
	}, []string{"result"})

	// RateLimitRejections counts HTTP requests rejected by the per-IP limiter
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected due to rate limiting",
	})

	// RateLimitWaits counts API calls that had to wait for a concurrency slot
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limit_waits_total",
		Help:      "Requests that waited for the concurrency semaphore",
	})

	// HTTPRequestsTotal counts HTTP transport requests
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method and status",
	}, []string{"method", "status"})

	// ContentSize tracks article text sizes
	ContentSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Article text size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	}, []string{"operation"})
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRequest records a completed tool call with its duration and status
func RecordRequest(tool string, duration float64, success bool) {
	RequestsTotal.WithLabelValues(tool, status(success)).Inc()
	RequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordAPICall records a Wikipedia API call
func RecordAPICall(action string, duration float64, success bool) {
	WikiAPIRequestsTotal.WithLabelValues(action, status(success)).Inc()
	WikiAPILatency.WithLabelValues(action).Observe(duration)
}

// RecordLookup records a facade operation. errorCode is empty on success.
func RecordLookup(operation, language, errorCode string) {
	LookupsTotal.WithLabelValues(operation, language, status(errorCode == "")).Inc()
	if errorCode != "" {
		LookupErrors.WithLabelValues(operation, errorCode).Inc()
	}
}

// RecordCacheAccess records a cache hit or miss
func RecordCacheAccess(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// SetCacheSize updates the current cache size gauge
func SetCacheSize(size int64) {
	CacheSize.Set(float64(size))
}

// CacheObserver forwards cache events to the cache metrics.
type CacheObserver struct{}

func (CacheObserver) CacheAccess(hit bool) { RecordCacheAccess(hit) }
func (CacheObserver) CacheEviction()       { CacheEvictions.Inc() }
func (CacheObserver) CacheSize(size int)   { SetCacheSize(int64(size)) }
