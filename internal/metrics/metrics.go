// Package metrics exposes Prometheus collectors for report fetching and redirect resolution.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiCallsTotal          *prometheus.CounterVec
	apiRetriesTotal        *prometheus.CounterVec
	rateLimitWaitSeconds   prometheus.Histogram
	rowsFlattenedTotal     *prometheus.CounterVec
	redirectOutcomesTotal  *prometheus.CounterVec
	tablesWrittenTotal     *prometheus.CounterVec
	notificationErrorTotal prometheus.Counter

	once sync.Once
)

// Outcome labels for API calls.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeFailed    = "failed"
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		apiCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsc_api_calls_total",
				Help: "Crawl error sample list calls, labeled by property, category, platform and outcome.",
			},
			[]string{"property", "category", "platform", "outcome"},
		)

		apiRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsc_api_retries_total",
				Help: "Retries scheduled after a retryable API status, labeled by category and platform.",
			},
			[]string{"category", "platform"},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gsc_rate_limit_wait_seconds",
				Help:    "Time spent blocked on the API rate limiter.",
				Buckets: []float64{0.05, 0.1, 0.3, 0.5, 1, 5, 15, 60},
			},
		)

		rowsFlattenedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gsc_rows_flattened_total",
				Help: "Crawl error data rows produced, labeled by category.",
			},
			[]string{"category"},
		)

		redirectOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redirect_resolutions_total",
				Help: "Redirect resolutions, labeled by outcome (matched/unmatched).",
			},
			[]string{"outcome"},
		)

		tablesWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tables_written_total",
				Help: "Output tables written, labeled by kind.",
			},
			[]string{"kind"},
		)

		notificationErrorTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "notification_errors_total",
				Help: "Run notifications that failed to publish.",
			},
		)
	})
}

// SanitizeProperty reduces a Search Console property to a lowercase host label.
// Domain properties ("sc-domain:example.com") keep their domain. It returns
// "unknown" if nothing usable remains.
func SanitizeProperty(property string) string {
	if rest, ok := strings.CutPrefix(property, "sc-domain:"); ok {
		property = rest
	}
	if !strings.HasPrefix(property, "http") {
		property = "http://" + property
	}
	u, err := url.Parse(property)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPICall counts one list call.
func ObserveAPICall(property, category, platform, outcome string) {
	Init()
	apiCallsTotal.WithLabelValues(SanitizeProperty(property), category, platform, outcome).Inc()
}

// ObserveRetry counts one scheduled retry.
func ObserveRetry(category, platform string) {
	Init()
	apiRetriesTotal.WithLabelValues(category, platform).Inc()
}

// ObserveRateLimitWait records the duration of a limiter wait.
func ObserveRateLimitWait(d time.Duration) {
	Init()
	rateLimitWaitSeconds.Observe(d.Seconds())
}

// ObserveRows adds flattened data rows for a category.
func ObserveRows(category string, n int) {
	Init()
	if n > 0 {
		rowsFlattenedTotal.WithLabelValues(category).Add(float64(n))
	}
}

// ObserveRedirect counts one resolution outcome.
func ObserveRedirect(outcome string) {
	Init()
	redirectOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveTableWritten counts one written output table.
func ObserveTableWritten(kind string) {
	Init()
	tablesWrittenTotal.WithLabelValues(kind).Inc()
}

// ObserveNotificationError counts one failed publish.
func ObserveNotificationError() {
	Init()
	notificationErrorTotal.Inc()
}
