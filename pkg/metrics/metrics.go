// Package metrics exposes Prometheus instrumentation for the collector
// loop and the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulseboard"

// Manager holds all Prometheus collectors for the service.
type Manager struct {
	registry *prometheus.Registry

	ticksTotal          prometheus.Counter
	tickDuration        prometheus.Histogram
	fetchFailures       *prometheus.CounterVec
	snapshotsPublished  prometheus.Counter
	publishDuration     prometheus.Histogram
	accountsTracked     prometheus.Gauge
	staleEntries        prometheus.Gauge
	alertsGenerated     prometheus.Counter
	lastPublishUnix     prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Custom registry so the default Go runtime collectors stay out of scrapes.
var globalManager = NewManager()

// NewManager creates a metrics manager with its own registry.
func NewManager() *Manager {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	m := &Manager{registry: registry}

	m.ticksTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collector_ticks_total",
		Help:      "Total number of collector ticks executed",
	})

	m.tickDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "collector_tick_duration_seconds",
		Help:      "Duration of a full collector tick",
		Buckets:   prometheus.DefBuckets,
	})

	m.fetchFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Total number of failed account fetches by username",
		},
		[]string{"username"},
	)

	m.snapshotsPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_publishes_total",
		Help:      "Total number of leaderboard snapshots published",
	})

	m.publishDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "leaderboard_publish_duration_seconds",
		Help:      "Time spent computing and publishing a leaderboard snapshot",
		Buckets:   prometheus.DefBuckets,
	})

	m.accountsTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "accounts_tracked",
		Help:      "Number of accounts currently tracked",
	})

	m.staleEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "leaderboard_stale_entries",
		Help:      "Number of stale entries carried forward in the latest snapshot",
	})

	m.alertsGenerated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_generated_total",
		Help:      "Total number of spike alerts generated",
	})

	m.lastPublishUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "leaderboard_last_publish_unix",
		Help:      "Unix timestamp of the last leaderboard publish",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by endpoint, method and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	return m
}

// RecordTick increments the tick counter and observes its duration.
func RecordTick(seconds float64) {
	globalManager.ticksTotal.Inc()
	globalManager.tickDuration.Observe(seconds)
}

// RecordFetchFailure increments the fetch failure counter for an account.
func RecordFetchFailure(username string) {
	globalManager.fetchFailures.WithLabelValues(username).Inc()
}

// RecordPublish increments the publish counter and observes its duration.
func RecordPublish(seconds float64) {
	globalManager.snapshotsPublished.Inc()
	globalManager.publishDuration.Observe(seconds)
}

// UpdateAccountsTracked sets the tracked account count.
func UpdateAccountsTracked(count int) {
	globalManager.accountsTracked.Set(float64(count))
}

// UpdateStaleEntries sets the stale entry count of the latest snapshot.
func UpdateStaleEntries(count int) {
	globalManager.staleEntries.Set(float64(count))
}

// RecordAlerts adds to the generated alert counter.
func RecordAlerts(count int) {
	globalManager.alertsGenerated.Add(float64(count))
}

// UpdateLastPublish sets the last publish timestamp.
func UpdateLastPublish(unix int64) {
	globalManager.lastPublishUnix.Set(float64(unix))
}

// RecordHTTPRequest records an HTTP request with its duration in seconds.
func RecordHTTPRequest(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// Handler returns an HTTP handler serving the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(globalManager.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry behind the package-level helpers.
func Registry() *prometheus.Registry {
	return globalManager.registry
}
