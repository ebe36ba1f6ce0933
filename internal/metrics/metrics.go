// Package metrics provides Prometheus metrics for the gallery server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivegallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivegallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Remote source metrics
	sourceOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivegallery_source_operation_duration_seconds",
			Help:    "Remote source operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	sourceOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivegallery_source_operations_total",
			Help: "Total remote source operations",
		},
		[]string{"operation", "status"},
	)

	// Download metrics
	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivegallery_download_bytes_total",
			Help: "Total image bytes downloaded from the remote source",
		},
	)

	downloadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivegallery_download_retries_total",
			Help: "Total download retry attempts after a failure",
		},
	)

	downloadFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivegallery_download_failures_total",
			Help: "Total downloads that failed after retry exhaustion",
		},
	)

	// Cache metrics
	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivegallery_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"operation"},
	)

	cacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivegallery_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"operation"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivegallery_cache_entries",
			Help: "Current number of cache entries",
		},
	)

	cacheClearsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivegallery_cache_clears_total",
			Help: "Total explicit cache clears",
		},
	)

	// Thumbnail metrics
	thumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drivegallery_thumbnail_duration_seconds",
			Help:    "Time to decode and downscale one image",
			Buckets: prometheus.DefBuckets,
		},
	)

	thumbnailFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drivegallery_thumbnail_failures_total",
			Help: "Total images that failed to decode or downscale",
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivegallery_auth_attempts_total",
			Help: "Total gallery login attempts",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSourceOperation records a remote source call.
func RecordSourceOperation(operation string, duration time.Duration, success bool) {
	sourceOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	sourceOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDownload records a completed image download.
func RecordDownload(bytes int64) {
	downloadBytesTotal.Add(float64(bytes))
}

// RecordDownloadRetry records one retry attempt.
func RecordDownloadRetry() {
	downloadRetriesTotal.Inc()
}

// RecordDownloadFailure records a download that exhausted its retries.
func RecordDownloadFailure() {
	downloadFailuresTotal.Inc()
}

// RecordCacheHit records a cache hit for an operation.
func RecordCacheHit(operation string) {
	cacheHitsTotal.WithLabelValues(operation).Inc()
}

// RecordCacheMiss records a cache miss for an operation.
func RecordCacheMiss(operation string) {
	cacheMissesTotal.WithLabelValues(operation).Inc()
}

// SetCacheEntries sets the current cache entry count.
func SetCacheEntries(count int) {
	cacheEntries.Set(float64(count))
}

// RecordCacheClear records an explicit cache clear.
func RecordCacheClear() {
	cacheClearsTotal.Inc()
}

// RecordThumbnail records a thumbnail generation.
func RecordThumbnail(duration time.Duration, success bool) {
	if success {
		thumbnailDuration.Observe(duration.Seconds())
	} else {
		thumbnailFailuresTotal.Inc()
	}
}

// RecordAuthAttempt records a gallery login attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
