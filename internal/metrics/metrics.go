package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync metrics
var (
	// SyncRunsTotal tracks total sync runs by outcome
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"project_id", "outcome"},
	)

	// SyncRunDuration tracks sync run duration
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Sync run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"project_id"},
	)

	// SyncRunsInProgress tracks currently running syncs
	SyncRunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_runs_in_progress",
			Help: "Number of sync runs currently in progress",
		},
	)

	// FindingsUpserted tracks findings written during syncs
	FindingsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findings_upserted_total",
			Help: "Total findings inserted or updated during sync runs",
		},
		[]string{"project_id"},
	)

	// FindingsStaleMarked tracks findings closed as stale during syncs
	FindingsStaleMarked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findings_stale_marked_total",
			Help: "Total findings marked stale during sync runs",
		},
		[]string{"project_id"},
	)
)

// Upstream client metrics
var (
	// UpstreamRequestsTotal tracks requests to the analysis server
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total upstream API requests by endpoint and status code",
		},
		[]string{"endpoint", "status"},
	)

	// UpstreamRequestDuration tracks upstream request latency
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// UpstreamRetriesTotal tracks retry attempts against the analysis server
	UpstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_retries_total",
			Help: "Total upstream request retries by endpoint",
		},
		[]string{"endpoint"},
	)

	// UpstreamCacheHits tracks client response cache hits
	UpstreamCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_cache_hits_total",
			Help: "Total upstream response cache hits",
		},
	)

	// UpstreamCacheMisses tracks client response cache misses
	UpstreamCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_cache_misses_total",
			Help: "Total upstream response cache misses",
		},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks total HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Job metrics
var (
	// JobsProcessedTotal tracks background jobs by type and status
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total background jobs processed by type and status",
		},
		[]string{"type", "status"},
	)
)
