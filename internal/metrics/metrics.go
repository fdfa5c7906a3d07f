// Package metrics exposes Prometheus collectors for the scraping service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal        *prometheus.CounterVec
	scraperFetchSeconds      *prometheus.HistogramVec
	scraperDocumentsTotal    *prometheus.CounterVec
	ingestRecordsTotal       *prometheus.CounterVec
	scraperRateLimitSeconds  *prometheus.HistogramVec
	schedulerJobRunsTotal    *prometheus.CounterVec
	scraperRetryAttemptsTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of pages fetched, labeled by site and status code.",
			},
			[]string{"site", "status"},
		)

		scraperFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		scraperDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_documents_total",
				Help: "Total number of documents processed, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		ingestRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_records_total",
				Help: "Total number of knowledge records written, labeled by tier.",
			},
			[]string{"tier"},
		)

		scraperRateLimitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		schedulerJobRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_job_runs_total",
				Help: "Total number of scheduled job executions, labeled by status.",
			},
			[]string{"status"},
		)

		scraperRetryAttemptsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_retry_attempts_total",
				Help: "Total number of fetch retry attempts.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one fetch attempt.
func ObservePage(site string, statusCode int, duration time.Duration) {
	sanitized := SanitizeSite(site)
	scraperPagesTotal.WithLabelValues(sanitized, strconv.Itoa(statusCode)).Inc()
	scraperFetchSeconds.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// ObserveDocument records a document outcome (saved, skipped, failed).
func ObserveDocument(source, outcome string) {
	scraperDocumentsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveIngest records persisted knowledge records for a tier.
func ObserveIngest(tier string, count int) {
	if count > 0 {
		ingestRecordsTotal.WithLabelValues(tier).Add(float64(count))
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	scraperRateLimitSeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// ObserveJobRun increments the scheduled job counter for the given status.
func ObserveJobRun(status string) {
	schedulerJobRunsTotal.WithLabelValues(status).Inc()
}

// ObserveRetry increments the retry attempt counter.
func ObserveRetry() {
	scraperRetryAttemptsTotal.Inc()
}
