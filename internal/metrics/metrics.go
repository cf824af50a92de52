// Package metrics exposes Prometheus collectors for the crawl service.
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
	tasksTotal             *prometheus.CounterVec
	pagesTotal             prometheus.Counter
	recordsTotal           prometheus.Counter
	detailAttemptsTotal    *prometheus.CounterVec
	httpRequestsTotal      *prometheus.CounterVec
	politenessDelaySeconds prometheus.Histogram
	activeTasks            prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stdcrawler_tasks_total",
				Help: "Total number of crawl tasks, labeled by terminal status.",
			},
			[]string{"status"},
		)

		pagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stdcrawler_pages_total",
				Help: "Total number of result pages parsed.",
			},
		)

		recordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stdcrawler_records_total",
				Help: "Total number of records extracted from result pages.",
			},
		)

		detailAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stdcrawler_detail_attempts_total",
				Help: "Detail-page fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stdcrawler_http_requests_total",
				Help: "API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		politenessDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stdcrawler_politeness_delay_seconds",
				Help:    "Histogram of politeness delay durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
		)

		activeTasks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stdcrawler_active_tasks",
				Help: "Number of tasks currently executing.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTask increments the task counter for a terminal status.
func ObserveTask(status string) {
	tasksTotal.WithLabelValues(status).Inc()
}

// ObservePage records one parsed result page and its record yield.
func ObservePage(records int) {
	pagesTotal.Inc()
	if records > 0 {
		recordsTotal.Add(float64(records))
	}
}

// ObserveDetailAttempt increments the detail attempt counter.
func ObserveDetailAttempt(outcome string) {
	detailAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the API request counter.
func ObserveHTTPRequest(method string, code int) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ObservePolitenessDelay records one politeness wait.
func ObservePolitenessDelay(d time.Duration) {
	politenessDelaySeconds.Observe(d.Seconds())
}

// IncActiveTasks increments the active task gauge.
func IncActiveTasks() {
	activeTasks.Inc()
}

// DecActiveTasks decrements the active task gauge.
func DecActiveTasks() {
	activeTasks.Dec()
}
