// Package metrics defines the Prometheus metric collectors used by the
// indexer and searcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the build and query paths.
type Metrics struct {
	DocsIndexedTotal     prometheus.Counter
	DocsSkippedTotal     *prometheus.CounterVec
	SegmentFlushesTotal  *prometheus.CounterVec
	SegmentFlushDuration prometheus.Histogram
	MergeDuration        prometheus.Histogram
	IndexTerms           prometheus.Gauge
	IndexDocs            prometheus.Gauge
	IndexReloadsTotal    *prometheus.CounterVec

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchStageLatency *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents accepted into the index.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_skipped_total",
				Help: "Documents skipped during a build by reason (no_url, invalid_url, duplicate, empty, extract_failed, decode_failed).",
			},
			[]string{"reason"},
		),
		SegmentFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "segment_flushes_total",
				Help: "Total partial index flushes by status.",
			},
			[]string{"status"},
		),
		SegmentFlushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "segment_flush_duration_seconds",
				Help:    "Time spent weighting and writing one segment.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		MergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "segment_merge_duration_seconds",
				Help:    "Time spent merging segments into the final index.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of distinct terms in the served or last built index.",
			},
		),
		IndexDocs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of documents in the served or last built index.",
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_reloads_total",
				Help: "Index snapshot reloads by status.",
			},
			[]string{"status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchStageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_stage_latency_seconds",
				Help:    "Latency of each query stage (resolve, fetch, intersect, rank).",
				Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"stage"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
	}

	reg.MustRegister(
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.SegmentFlushesTotal,
		m.SegmentFlushDuration,
		m.MergeDuration,
		m.IndexTerms,
		m.IndexDocs,
		m.IndexReloadsTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchStageLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
