package metrics

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path", "status"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "environment", "service"},
	)

	AppUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_up",
			Help: "Application is up and running",
		},
	)

	// Upload sessions, keyed by the terminal (or non-terminal) state reached.
	UploadSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_sessions_total",
			Help: "Total number of upload sessions by outcome",
		},
		[]string{"outcome"},
	)

	UploadChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_chunks_total",
			Help: "Total number of chunk receipts by outcome",
		},
		[]string{"outcome"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_bytes_total",
			Help: "Total bytes accepted into staging or materialised into storage",
		},
		[]string{"stage"},
	)

	UploadFinalizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upload_finalize_duration_seconds",
			Help:    "Duration of the finalisation pipeline in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	DedupHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dedup_hits_total",
			Help: "Total number of Initiate calls short-circuited by the dedup index",
		},
	)

	SweeperStagingPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_staging_purged_total",
			Help: "Total number of staging directories purged by the sweeper",
		},
	)

	SweeperObjectsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_objects_purged_total",
			Help: "Total number of stored objects purged by the sweeper",
		},
	)

	SweeperBytesFreedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_bytes_freed_total",
			Help: "Total bytes freed by the sweeper's object retention pass",
		},
	)

	SweeperErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_errors_total",
			Help: "Total errors encountered by sweeper tasks",
		},
		[]string{"task"},
	)
)

func NormalizePath(path string) string {
	return uuidRegex.ReplaceAllString(path, ":id")
}

func SetAppInfo(version, environment, service string) {
	AppInfo.WithLabelValues(version, environment, service).Set(1)
	AppUp.Set(1)
}

// RecordSession records the terminal (or initiate) outcome of a session lifecycle event.
func RecordSession(outcome string) {
	UploadSessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordChunk records a chunk receipt outcome (staged, replay, not_found,
// conflict, invalid_index, stage_error).
func RecordChunk(outcome string) {
	UploadChunksTotal.WithLabelValues(outcome).Inc()
}

// RecordBytes adds to the byte counter for a given pipeline stage (staged, stored).
func RecordBytes(stage string, n int64) {
	UploadBytesTotal.WithLabelValues(stage).Add(float64(n))
}

// RecordFinalize records the duration and outcome of one Finalize call.
func RecordFinalize(outcome string, seconds float64) {
	UploadFinalizeDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordDedupHit increments the dedup short-circuit counter.
func RecordDedupHit() {
	DedupHitsTotal.Inc()
}

// RecordSweep records the result of one sweeper task invocation.
func RecordSweep(task string, staging, objects int, bytesFreed int64, err error) {
	if err != nil {
		SweeperErrorsTotal.WithLabelValues(task).Inc()
		return
	}
	SweeperStagingPurgedTotal.Add(float64(staging))
	SweeperObjectsPurgedTotal.Add(float64(objects))
	SweeperBytesFreedTotal.Add(float64(bytesFreed))
}
