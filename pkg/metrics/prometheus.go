// Package metrics provides Prometheus metrics for the scramble tournament services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultLatencyBuckets are in milliseconds.
var defaultLatencyBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // read-only

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Submission Metrics - scorer device pipeline
	submissions        *prometheus.CounterVec
	upsertLatency      prometheus.Histogram
	pendingQueueDepth  prometheus.Gauge
	drainRuns          prometheus.Counter
	drainConfirmed     prometheus.Counter
	drainFailed        prometheus.Counter
	drainSuppressed    prometheus.Counter
	connectivityOnline prometheus.Gauge

	// Leaderboard Metrics
	leaderboardRecomputes       prometheus.Counter
	leaderboardRecomputeLatency prometheus.Histogram
	leaderboardTeams            prometheus.Gauge
	leaderboardObservers        prometheus.Gauge

	// Store Metrics - row writes and change feeds
	storeWrites     *prometheus.CounterVec
	feedSubscribers *prometheus.GaugeVec
	feedDrops       *prometheus.CounterVec

	// Intent queue and worker Metrics
	intentQueueSize         prometheus.Gauge
	intentQueueCapacity     prometheus.Gauge
	intentEnqueueErrors     *prometheus.CounterVec
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// Live push Metrics
	websocketClients    prometheus.Gauge
	websocketBroadcasts *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "scramble",
		subsystem:      "tournament",
		latencyBuckets: defaultLatencyBuckets,
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.submissions = m.counterVec("submissions_total", "Score submissions by outcome (confirmed, queued, queue_failed, superseded)", "outcome")
	m.upsertLatency = m.histogram("upsert_latency_milliseconds", "Latency of remote score upserts in milliseconds", m.latencyBuckets)
	m.pendingQueueDepth = m.gauge("pending_queue_depth", "Score submissions waiting in the local pending queue")
	m.drainRuns = m.counter("drain_runs_total", "Pending queue drains started")
	m.drainConfirmed = m.counter("drain_confirmed_total", "Pending entries confirmed by the store during drains")
	m.drainFailed = m.counter("drain_failed_total", "Pending entries left queued after a failed drain attempt")
	m.drainSuppressed = m.counter("drain_suppressed_total", "Drain attempts suppressed because a drain was already running")
	m.connectivityOnline = m.gauge("connectivity_online", "1 when the store is reachable, 0 otherwise")

	m.leaderboardRecomputes = m.counter("leaderboard_recomputes_total", "Full leaderboard recomputations")
	m.leaderboardRecomputeLatency = m.histogram("leaderboard_recompute_latency_milliseconds",
		"Leaderboard recomputation latency in milliseconds", []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50})
	m.leaderboardTeams = m.gauge("leaderboard_teams", "Teams on the leaderboard")
	m.leaderboardObservers = m.gauge("leaderboard_observers", "Subscribed leaderboard observers")

	m.storeWrites = m.counterVec("store_writes_total", "Row writes by table and change kind", "table", "op")
	m.feedSubscribers = m.gaugeVec("feed_subscribers", "Change feed subscribers", "feed")
	m.feedDrops = m.counterVec("feed_drops_total", "Subscribers dropped for falling behind", "feed")

	m.intentQueueSize = m.gauge("intent_queue_size", "Submission intents waiting for a worker")
	m.intentQueueCapacity = m.gauge("intent_queue_capacity", "Maximum submission intents held in memory")
	m.intentEnqueueErrors = m.counterVec("intent_enqueue_errors_total", "Rejected submission intents by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Running submission workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time a worker spends delivering one submission", m.latencyBuckets)

	m.websocketClients = m.gauge("websocket_clients", "Connected live-update clients")
	m.websocketBroadcasts = m.counterVec("websocket_broadcasts_total", "Live-update messages broadcast by type", "type")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Submission Metrics Functions.

// RecordSubmission counts a submission by outcome.
func RecordSubmission(outcome string) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
}

// RecordUpsertLatency records the latency of a remote upsert.
func RecordUpsertLatency(latencyMs float64) {
	globalManager.upsertLatency.Observe(latencyMs)
}

// UpdatePendingQueueDepth sets the number of unsynced entries.
func UpdatePendingQueueDepth(depth int) {
	globalManager.pendingQueueDepth.Set(float64(depth))
}

// RecordDrain records one completed drain.
func RecordDrain(confirmed, failed int) {
	globalManager.drainRuns.Inc()
	globalManager.drainConfirmed.Add(float64(confirmed))
	globalManager.drainFailed.Add(float64(failed))
}

// RecordDrainSuppressed counts a drain that was skipped by the re-entrancy guard.
func RecordDrainSuppressed() {
	globalManager.drainSuppressed.Inc()
}

// UpdateConnectivity mirrors the connectivity monitor state.
func UpdateConnectivity(online bool) {
	v := 0.0
	if online {
		v = 1
	}
	globalManager.connectivityOnline.Set(v)
}

// Leaderboard Metrics Functions.

// RecordLeaderboardRecompute records one recomputation and its latency.
func RecordLeaderboardRecompute(latencyMs float64) {
	globalManager.leaderboardRecomputes.Inc()
	globalManager.leaderboardRecomputeLatency.Observe(latencyMs)
}

// UpdateLeaderboardTeams sets the number of ranked teams.
func UpdateLeaderboardTeams(count int) {
	globalManager.leaderboardTeams.Set(float64(count))
}

// UpdateLeaderboardObservers sets the number of subscribed observers.
func UpdateLeaderboardObservers(count int) {
	globalManager.leaderboardObservers.Set(float64(count))
}

// Store Metrics Functions.

// RecordStoreWrite counts a committed row change.
func RecordStoreWrite(table, op string) {
	globalManager.storeWrites.WithLabelValues(table, op).Inc()
}

// UpdateFeedSubscribers sets the subscriber count of a change feed.
func UpdateFeedSubscribers(feed string, count int) {
	globalManager.feedSubscribers.WithLabelValues(feed).Set(float64(count))
}

// RecordFeedDrop counts a subscriber dropped for a full buffer.
func RecordFeedDrop(feed string) {
	globalManager.feedDrops.WithLabelValues(feed).Inc()
}

// Intent Queue and Worker Metrics Functions.

// UpdateIntentQueueSize sets the number of queued intents.
func UpdateIntentQueueSize(size int) {
	globalManager.intentQueueSize.Set(float64(size))
}

// UpdateIntentQueueCapacity sets the intent queue capacity.
func UpdateIntentQueueCapacity(capacity int) {
	globalManager.intentQueueCapacity.Set(float64(capacity))
}

// RecordIntentEnqueueError counts a rejected intent.
func RecordIntentEnqueueError(reason string) {
	globalManager.intentEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// Live Push Metrics Functions.

// UpdateWebsocketClients sets the number of connected clients.
func UpdateWebsocketClients(count int) {
	globalManager.websocketClients.Set(float64(count))
}

// RecordWebsocketBroadcast counts a broadcast message.
func RecordWebsocketBroadcast(msgType string) {
	globalManager.websocketBroadcasts.WithLabelValues(msgType).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
