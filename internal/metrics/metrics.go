// Package metrics exposes Prometheus collectors for the crawler.
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

var (
	pagesFetchedTotal    *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	fetchRetriesTotal    *prometheus.CounterVec
	articlesSavedTotal   *prometheus.CounterVec
	articlesSkippedTotal *prometheus.CounterVec
	extractFailuresTotal *prometheus.CounterVec
	activeWorkers        prometheus.Gauge
	httpRequestsTotal    *prometheus.CounterVec
	httpDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors. It is safe to
// call multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_fetched_total",
				Help: "Total pages fetched, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Total fetch retries, labeled by host.",
			},
			[]string{"host"},
		)

		articlesSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_articles_saved_total",
				Help: "Total articles persisted, labeled by site.",
			},
			[]string{"site"},
		)

		articlesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_articles_skipped_total",
				Help: "Total articles skipped, labeled by site and reason.",
			},
			[]string{"site", "reason"},
		)

		extractFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_extract_failures_total",
				Help: "Total extraction rejections, labeled by site and field.",
			},
			[]string{"site", "field"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently fetching or parsing.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_http_requests_total",
				Help: "Total ops API requests, labeled by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		)

		httpDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_http_request_duration_seconds",
				Help:    "Histogram of ops API request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one completed fetch attempt.
func ObserveFetch(site string, ok bool, duration time.Duration) {
	if pagesFetchedTotal == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	pagesFetchedTotal.WithLabelValues(site, outcome).Inc()
	if ok {
		fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	}
}

// ObserveRetry records one fetch retry.
func ObserveRetry(host string) {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.WithLabelValues(host).Inc()
}

// ObserveSaved records one persisted article.
func ObserveSaved(site string) {
	if articlesSavedTotal == nil {
		return
	}
	articlesSavedTotal.WithLabelValues(site).Inc()
}

// ObserveSkipped records one rejected article.
func ObserveSkipped(site string, reason string) {
	if articlesSkippedTotal == nil {
		return
	}
	articlesSkippedTotal.WithLabelValues(site, reason).Inc()
}

// ObserveExtractFailure records one extraction rejection.
func ObserveExtractFailure(site string, field string) {
	if extractFailuresTotal == nil {
		return
	}
	extractFailuresTotal.WithLabelValues(site, field).Inc()
}

// ObserveHTTPRequest records one completed ops API request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// WorkerStarted marks one worker as busy.
func WorkerStarted() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Inc()
}

// WorkerDone marks one worker as idle.
func WorkerDone() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Dec()
}
