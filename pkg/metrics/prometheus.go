// Package metrics provides Prometheus metrics for the pulse pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer

	// Fetch / failover metrics
	fetchAttempts     *prometheus.CounterVec
	fetchFailovers    prometheus.Counter
	fetchExhaustions  prometheus.Counter
	rateLimitBackoffs prometheus.Counter

	// Collection metrics
	usersCollected prometheus.Counter
	usersFailed    prometheus.Counter
	recordsDropped prometheus.Counter

	// Run metrics
	runDuration     prometheus.Histogram
	runsTotal       prometheus.Counter
	lastRunUnix     prometheus.Gauge
	activeUsers     prometheus.Gauge
	healthScore     prometheus.Gauge
	patacoinsMinted prometheus.Counter
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry sets a custom Prometheus registerer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "pulse",
		subsystem: "pipeline",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		}
	}

	m.fetchAttempts = prometheus.NewCounterVec(
		factory("fetch_attempts_total", "API fetch attempts by endpoint."),
		[]string{"endpoint"},
	)
	m.fetchFailovers = prometheus.NewCounter(
		factory("fetch_failovers_total", "Endpoint failovers during fetches."))
	m.fetchExhaustions = prometheus.NewCounter(
		factory("fetch_exhaustions_total", "Fetches that exhausted the endpoint pool."))
	m.rateLimitBackoffs = prometheus.NewCounter(
		factory("rate_limit_backoffs_total", "Backoff waits triggered by rate-limit signals."))

	m.usersCollected = prometheus.NewCounter(
		factory("users_collected_total", "Users whose activity was collected successfully."))
	m.usersFailed = prometheus.NewCounter(
		factory("users_failed_total", "Users whose collection failed and degraded to zero activity."))
	m.recordsDropped = prometheus.NewCounter(
		factory("records_dropped_total", "Upstream records discarded during normalization."))

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of a daily pipeline run.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	m.runsTotal = prometheus.NewCounter(
		factory("runs_total", "Completed daily pipeline runs."))
	m.lastRunUnix = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_unix",
		Help:      "Unix timestamp of the last completed run.",
	})
	m.activeUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_users",
		Help:      "Active users in the most recent community snapshot.",
	})
	m.healthScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "community_health_score",
		Help:      "Community health score of the most recent snapshot.",
	})
	m.patacoinsMinted = prometheus.NewCounter(
		factory("patacoins_minted_total", "Patacoins accrued across all users and runs."))

	m.registry.MustRegister(
		m.fetchAttempts,
		m.fetchFailovers,
		m.fetchExhaustions,
		m.rateLimitBackoffs,
		m.usersCollected,
		m.usersFailed,
		m.recordsDropped,
		m.runDuration,
		m.runsTotal,
		m.lastRunUnix,
		m.activeUsers,
		m.healthScore,
		m.patacoinsMinted,
	)
}

// Package-level helpers against the global manager.

// RecordFetchAttempt counts one attempt against an endpoint.
func RecordFetchAttempt(endpoint string) {
	globalManager.fetchAttempts.WithLabelValues(endpoint).Inc()
}

// RecordFetchFailover counts an advance to the next endpoint.
func RecordFetchFailover() { globalManager.fetchFailovers.Inc() }

// RecordFetchExhausted counts a fetch that failed across the whole pool.
func RecordFetchExhausted() { globalManager.fetchExhaustions.Inc() }

// RecordRateLimitBackoff counts a backoff wait before retrying an endpoint.
func RecordRateLimitBackoff() { globalManager.rateLimitBackoffs.Inc() }

// RecordUserCollected counts one successfully collected user.
func RecordUserCollected() { globalManager.usersCollected.Inc() }

// RecordUserFailed counts one user degraded to a zero-activity record.
func RecordUserFailed() { globalManager.usersFailed.Inc() }

// RecordRecordDropped counts one discarded upstream record.
func RecordRecordDropped() { globalManager.recordsDropped.Inc() }

// RecordRunDuration observes the duration of a completed run in seconds.
func RecordRunDuration(seconds float64) {
	globalManager.runDuration.Observe(seconds)
	globalManager.runsTotal.Inc()
}

// UpdateLastRunUnix records when the last run completed.
func UpdateLastRunUnix(ts float64) { globalManager.lastRunUnix.Set(ts) }

// UpdateActiveUsers publishes the latest snapshot's active-user count.
func UpdateActiveUsers(n int) { globalManager.activeUsers.Set(float64(n)) }

// UpdateHealthScore publishes the latest snapshot's health score.
func UpdateHealthScore(score float64) { globalManager.healthScore.Set(score) }

// RecordPatacoinsMinted adds the total accrued in a run.
func RecordPatacoinsMinted(amount float64) {
	if amount > 0 {
		globalManager.patacoinsMinted.Add(amount)
	}
}

// GetRegistry exposes the custom registry for the HTTP /metrics handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
