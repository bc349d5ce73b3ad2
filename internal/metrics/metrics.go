package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Artifact server metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subinject_http_requests_total",
			Help: "Total number of artifact server requests",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subinject_http_request_duration_seconds",
			Help:    "Artifact server request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Build metrics
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subinject_builds_total",
			Help: "Total number of injection builds by outcome",
		},
		[]string{"outcome"},
	)

	TracksInjectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subinject_tracks_injected_total",
			Help: "Total number of subtitle tracks declared in merged manifests",
		},
	)

	TracksSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subinject_tracks_skipped_total",
			Help: "Total number of subtitle tracks skipped due to fetch or persist failures",
		},
	)

	// Fetch metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subinject_fetches_total",
			Help: "Total number of remote source fetches by result",
		},
		[]string{"result"}, // "ok", "error", "cache_hit"
	)

	// Store metrics
	ArtifactWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subinject_artifact_writes_total",
			Help: "Total number of artifacts written to the store",
		},
	)

	ArtifactWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subinject_artifact_write_failures_total",
			Help: "Total number of failed artifact writes",
		},
	)
)

// Fetch result label values
const (
	FetchResultOK       = "ok"
	FetchResultError    = "error"
	FetchResultCacheHit = "cache_hit"
)
