package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageopt_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imageopt_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Pipeline metrics
	OptimizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageopt_optimizations_total",
			Help: "Total number of optimizations by outcome and output format",
		},
		[]string{"status", "format"}, // success, invalid, decode_error, encode_error, cancelled
	)

	OptimizationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imageopt_optimization_duration_seconds",
			Help:    "Optimization duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)

	OptimizationBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imageopt_bytes",
			Help:    "Optimization input/output bytes",
			Buckets: []float64{1024, 10240, 102400, 512000, 1048576, 5242880, 10485760},
		},
		[]string{"direction"}, // input, output
	)

	EncoderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageopt_encoder_fallbacks_total",
			Help: "Encoder attempts that failed or produced no output",
		},
		[]string{"format"},
	)

	OpenHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imageopt_open_handles",
			Help: "Decoded bitmaps and render surfaces not yet released",
		},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageopt_uploads_total",
			Help: "Storage uploads by outcome",
		},
		[]string{"status"},
	)

	// Queue/Pool metrics
	WorkerPoolQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imageopt_worker_pool_queue_size",
			Help: "Current number of jobs in worker pool queue",
		},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imageopt_worker_pool_active_jobs",
			Help: "Current number of active optimization jobs",
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageopt_rate_limit_exceeded_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
		[]string{"ip_prefix"}, // First octet for privacy
	)

	// Concurrency metrics
	ConcurrentRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imageopt_concurrent_requests",
			Help: "Current number of concurrent requests being processed",
		},
	)

	ConcurrencyLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imageopt_concurrency_limit_exceeded_total",
			Help: "Total number of requests rejected due to concurrency limit",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordOptimization records one pipeline run. format is empty on failure.
func RecordOptimization(status, format string, duration float64, inputBytes, outputBytes int) {
	OptimizationsTotal.WithLabelValues(status, format).Inc()
	OptimizationDuration.WithLabelValues(status).Observe(duration)
	OptimizationBytes.WithLabelValues("input").Observe(float64(inputBytes))
	if outputBytes > 0 {
		OptimizationBytes.WithLabelValues("output").Observe(float64(outputBytes))
	}
}

// RecordFallback records an encoder attempt that did not produce a blob
func RecordFallback(format string) {
	EncoderFallbacks.WithLabelValues(format).Inc()
}

// UpdateOpenHandles sets the live handle gauge
func UpdateOpenHandles(n int64) {
	OpenHandles.Set(float64(n))
}

// RecordUpload records a storage upload
func RecordUpload(status string) {
	Uploads.WithLabelValues(status).Inc()
}

// UpdateWorkerPoolMetrics updates worker pool metrics
func UpdateWorkerPoolMetrics(queueSize, activeJobs int) {
	WorkerPoolQueueSize.Set(float64(queueSize))
	WorkerPoolActiveJobs.Set(float64(activeJobs))
}

// RecordRateLimitExceeded records a rate limit rejection
func RecordRateLimitExceeded(ipPrefix string) {
	RateLimitExceeded.WithLabelValues(ipPrefix).Inc()
}

// UpdateConcurrency updates concurrent request gauge
func UpdateConcurrency(count int) {
	ConcurrentRequests.Set(float64(count))
}

// RecordConcurrencyLimitExceeded records a concurrency limit rejection
func RecordConcurrencyLimitExceeded() {
	ConcurrencyLimitExceeded.Inc()
}
