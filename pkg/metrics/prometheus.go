// Package metrics provides Prometheus metrics for the live fantasy engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Ingest and classification
	updatesReceived   prometheus.Counter
	updatesMalformed  prometheus.Counter
	updatesClassified *prometheus.CounterVec
	updatesDuplicate  prometheus.Counter

	// Queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueDropped  *prometheus.CounterVec
	queueDeferred prometheus.Counter

	// Processing
	ticks                *prometheus.CounterVec
	tickDuration         prometheus.Histogram
	batchSize            prometheus.Histogram
	updatesProcessed     *prometheus.CounterVec
	processingLatency    prometheus.Histogram
	updateAge            prometheus.Histogram
	processingErrors     *prometheus.CounterVec
	workerCount          prometheus.Gauge
	stateCorruptionCount prometheus.Counter

	// State
	playersTracked prometheus.Gauge
	gamesTracked   prometheus.Gauge
	enginePaused   prometheus.Gauge

	// Alerting
	alertsEmitted         *prometheus.CounterVec
	activeAlerts          prometheus.Gauge
	tradeSignals          prometheus.Counter
	lineupRecommendations prometheus.Counter

	// Outbound events
	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec

	// Feeds
	feedMessages   *prometheus.CounterVec
	feedReconnects *prometheus.CounterVec
	feedConnected  *prometheus.GaugeVec
	feedStale      *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fantasylive",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		customLabels:     map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	m.updatesReceived = m.counter("updates_received_total", "Raw feed messages handed to the classifier")
	m.updatesMalformed = m.counter("updates_malformed_total", "Raw messages rejected by the classifier")
	m.updatesClassified = m.counterVec("updates_classified_total", "Classified updates by kind and priority", "kind", "priority")
	m.updatesDuplicate = m.counter("updates_duplicate_total", "Updates skipped because their id was already applied")

	m.queueSize = m.gauge("queue_size", "Pending updates in the dispatch queue")
	m.queueCapacity = m.gauge("queue_capacity", "Configured dispatch queue capacity (0 = unbounded)")
	m.queueDropped = m.counterVec("queue_dropped_total", "Updates dropped by the queue overflow policy", "priority")
	m.queueDeferred = m.counter("queue_deferred_total", "Updates pushed to the next tick by per-key conflict resolution")

	m.ticks = m.counterVec("ticks_total", "Scheduler ticks by trigger", "trigger")
	m.tickDuration = m.histogram("tick_duration_milliseconds", "Wall time of one scheduler tick", m.histogramBuckets)
	m.batchSize = m.histogram("batch_size", "Updates per worker batch", []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512})
	m.updatesProcessed = m.counterVec("updates_processed_total", "Updates finished by workers by kind", "kind")
	m.processingLatency = m.histogram("update_processing_latency_milliseconds", "Pipeline time per update", m.histogramBuckets)
	m.updateAge = m.histogram("update_age_milliseconds", "Time from receipt to processed", m.histogramBuckets)
	m.processingErrors = m.counterVec("processing_errors_total", "Per-update pipeline failures by reason", "reason")
	m.workerCount = m.gauge("worker_count", "Workers in the pool")
	m.stateCorruptionCount = m.counter("state_corruption_total", "Projections discarded for breaking an invariant")

	m.playersTracked = m.gauge("players_tracked", "Players held in the state store")
	m.gamesTracked = m.gauge("games_tracked", "Games held in the state store")
	m.enginePaused = m.gauge("paused", "1 while the engine is paused")

	m.alertsEmitted = m.counterVec("alerts_emitted_total", "Alerts emitted by type", "type")
	m.activeAlerts = m.gauge("active_alerts", "Unexpired urgent alerts")
	m.tradeSignals = m.counter("trade_signals_total", "Trade-value signals emitted")
	m.lineupRecommendations = m.counter("lineup_recommendations_total", "Lineup optimizations generated")

	m.eventsPublished = m.counterVec("events_published_total", "Outbound events by type", "type")
	m.eventsDropped = m.counterVec("events_dropped_total", "Outbound events dropped by a sink", "sink")

	m.feedMessages = m.counterVec("feed_messages_total", "Messages read per feed", "feed")
	m.feedReconnects = m.counterVec("feed_reconnects_total", "Reconnect attempts per feed", "feed")
	m.feedConnected = m.gaugeVec("feed_connected", "1 while the feed connection is up", "feed")
	m.feedStale = m.gaugeVec("feed_stale", "1 while the feed has gone quiet past its stale window", "feed")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.customLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Live goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause", m.histogramBuckets)
}

// RecordUpdateReceived counts a raw message handed to the classifier.
func RecordUpdateReceived() { globalManager.updatesReceived.Inc() }

// RecordUpdateMalformed counts a classifier rejection.
func RecordUpdateMalformed() { globalManager.updatesMalformed.Inc() }

// RecordUpdateClassified counts an accepted update.
func RecordUpdateClassified(kind, priority string) {
	globalManager.updatesClassified.WithLabelValues(kind, priority).Inc()
}

// RecordUpdateDuplicate counts an update skipped by idempotency.
func RecordUpdateDuplicate() { globalManager.updatesDuplicate.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the configured queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueDropped counts an overflow drop.
func RecordQueueDropped(priority string) { globalManager.queueDropped.WithLabelValues(priority).Inc() }

// RecordQueueDeferred counts updates pushed to the next tick.
func RecordQueueDeferred(n int) { globalManager.queueDeferred.Add(float64(n)) }

// RecordTick records one scheduler tick.
func RecordTick(trigger string, durationMs float64) {
	globalManager.ticks.WithLabelValues(trigger).Inc()
	globalManager.tickDuration.Observe(durationMs)
}

// RecordBatchSize observes the size of a worker batch.
func RecordBatchSize(n int) { globalManager.batchSize.Observe(float64(n)) }

// RecordUpdateProcessed records a finished update.
func RecordUpdateProcessed(kind string, latencyMs, ageMs float64) {
	globalManager.updatesProcessed.WithLabelValues(kind).Inc()
	globalManager.processingLatency.Observe(latencyMs)
	globalManager.updateAge.Observe(ageMs)
}

// RecordProcessingError counts a per-update failure.
func RecordProcessingError(reason string) {
	globalManager.processingErrors.WithLabelValues(reason).Inc()
}

// RecordStateCorruption counts a discarded projection.
func RecordStateCorruption() { globalManager.stateCorruptionCount.Inc() }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateTrackedState sets the store size gauges.
func UpdateTrackedState(players, games int) {
	globalManager.playersTracked.Set(float64(players))
	globalManager.gamesTracked.Set(float64(games))
}

// UpdatePaused flips the paused gauge.
func UpdatePaused(paused bool) {
	if paused {
		globalManager.enginePaused.Set(1)
		return
	}
	globalManager.enginePaused.Set(0)
}

// RecordAlert counts an emitted alert.
func RecordAlert(alertType string) { globalManager.alertsEmitted.WithLabelValues(alertType).Inc() }

// UpdateActiveAlerts sets the unexpired alert gauge.
func UpdateActiveAlerts(n int) { globalManager.activeAlerts.Set(float64(n)) }

// RecordTradeSignal counts an emitted trade signal.
func RecordTradeSignal() { globalManager.tradeSignals.Inc() }

// RecordLineupRecommendation counts a generated lineup optimization.
func RecordLineupRecommendation() { globalManager.lineupRecommendations.Inc() }

// RecordEventPublished counts an outbound event.
func RecordEventPublished(eventType string) {
	globalManager.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped counts an event a sink could not deliver.
func RecordEventDropped(sink string) { globalManager.eventsDropped.WithLabelValues(sink).Inc() }

// RecordFeedMessage counts a message read from a feed.
func RecordFeedMessage(feed string) { globalManager.feedMessages.WithLabelValues(feed).Inc() }

// RecordFeedReconnect counts a reconnect attempt.
func RecordFeedReconnect(feed string) { globalManager.feedReconnects.WithLabelValues(feed).Inc() }

// UpdateFeedStatus sets the connection and staleness gauges of a feed.
func UpdateFeedStatus(feed string, connected, stale bool) {
	globalManager.feedConnected.WithLabelValues(feed).Set(boolGauge(connected))
	globalManager.feedStale.WithLabelValues(feed).Set(boolGauge(stale))
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
