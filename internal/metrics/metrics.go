// Package metrics exposes Prometheus collectors for the harvester.
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
	harvesterPollsTotal   *prometheus.CounterVec
	harvesterRunsTotal    *prometheus.CounterVec
	harvesterPagesTotal   *prometheus.CounterVec
	harvesterUploadsTotal *prometheus.CounterVec

	harvesterHTTPRequestsTotal   *prometheus.CounterVec
	harvesterHTTPRequestDuration *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterPollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_polls_total",
				Help: "Total status fetches performed by the poll driver, labeled by reported status.",
			},
			[]string{"status"},
		)

		harvesterRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Total crawl runs finished, labeled by result.",
			},
			[]string{"result"},
		)

		harvesterPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Total page records handled by the persister, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterUploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_uploads_total",
				Help: "Total upload attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterHTTPRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_http_requests_total",
				Help: "Total status-server HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		harvesterHTTPRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_http_request_duration_seconds",
				Help:    "Status-server HTTP request latencies, labeled by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePoll records one status fetch. The status label carries the remote
// status verbatim, or "fetch_error" when the fetch itself failed.
func ObservePoll(status string) {
	Init()
	harvesterPollsTotal.WithLabelValues(status).Inc()
}

// ObserveRun records a finished crawl run with its result label.
func ObserveRun(result string) {
	Init()
	harvesterRunsTotal.WithLabelValues(result).Inc()
}

// ObservePage records one handled page record (saved, skipped, or failed).
func ObservePage(outcome string) {
	Init()
	harvesterPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpload records one upload attempt (ok or failed).
func ObserveUpload(outcome string) {
	Init()
	harvesterUploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one status-server request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	Init()
	harvesterHTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	harvesterHTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
