// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upsert and source call outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeMalformed = "malformed"
	OutcomeEmpty     = "empty"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	queueDepth                 *prometheus.GaugeVec
	queueDroppedTotal          *prometheus.CounterVec
	upsertsTotal               *prometheus.CounterVec
	workerUp                   *prometheus.GaugeVec
	sourceRequestsTotal        *prometheus.CounterVec
	sourceRateLimitWaitSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsearch_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobsearch_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		queueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jobsearch_queue_depth",
				Help: "Records waiting in the ingestion queue, labeled by kind.",
			},
			[]string{"kind"},
		)

		queueDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsearch_queue_dropped_total",
				Help: "Records dropped by the ingestion queue, labeled by kind.",
			},
			[]string{"kind"},
		)

		upsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsearch_upserts_total",
				Help: "Upserts attempted by persistence workers, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		workerUp = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jobsearch_worker_up",
				Help: "1 while the persistence worker for a kind is running.",
			},
			[]string{"kind"},
		)

		sourceRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsearch_source_requests_total",
				Help: "Calls to the external job board, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		sourceRateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobsearch_source_rate_limit_wait_seconds",
				Help:    "Histogram of time spent waiting on the source rate limiter.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetQueueDepth records the current depth of a kind's queue.
func SetQueueDepth(kind string, depth int) {
	queueDepth.WithLabelValues(kind).Set(float64(depth))
}

// ObserveQueueDrop counts one dropped record.
func ObserveQueueDrop(kind string) {
	queueDroppedTotal.WithLabelValues(kind).Inc()
}

// ObserveUpsert counts one upsert attempt.
func ObserveUpsert(kind, outcome string) {
	upsertsTotal.WithLabelValues(kind, outcome).Inc()
}

// SetWorkerUp flips the worker liveness gauge.
func SetWorkerUp(kind string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	workerUp.WithLabelValues(kind).Set(v)
}

// ObserveSourceRequest counts one call to the job board.
func ObserveSourceRequest(kind, outcome string) {
	sourceRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveRateLimitWait records the duration of a rate limit wait.
func ObserveRateLimitWait(d time.Duration) {
	sourceRateLimitWaitSeconds.Observe(d.Seconds())
}
