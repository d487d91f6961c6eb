package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scoring
	framesScored     prometheus.Counter
	framesDegenerate prometheus.Counter
	scoringLatency   prometheus.Histogram
	totalPower       prometheus.Histogram

	// Stabilizer
	outliersRejected prometheus.Counter
	stabilizerHolds  prometheus.Counter
	rateLimited      prometheus.Counter

	// Sessions
	sessionsActive  prometheus.Gauge
	sessionsStarted prometheus.Counter
	sessionsFrozen  prometheus.Counter
	sessionsExpired prometheus.Counter
	framesDuplicate prometheus.Counter

	// Ranking and battles
	scoresSaved     prometheus.Counter
	scoresDeleted   prometheus.Counter
	rankingEntries  prometheus.Gauge
	imagesStored    prometheus.Counter
	battlesRecorded *prometheus.CounterVec

	// Repository
	repositoryUpdateLatency *prometheus.HistogramVec
	repositoryQueryLatency  *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket
	wsConnections prometheus.Gauge
	wsMessages    *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry keeps the default Go collectors off /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "combatpower",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.framesScored = m.counter("frames_scored_total", "Total number of landmark frames scored")
	m.framesDegenerate = m.counter("frames_degenerate_total", "Frames with fewer landmarks than the pose layout requires")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Latency of scoring plus stabilization per frame", m.histogramBuckets)
	m.totalPower = m.histogram("total_power", "Distribution of raw total power per scored frame",
		prometheus.LinearBuckets(100000, 50000, 9))

	m.outliersRejected = m.counter("stabilizer_outliers_rejected_total", "Samples dropped by the outlier filter")
	m.stabilizerHolds = m.counter("stabilizer_holds_total", "Updates that returned the previous stable value because no sample survived")
	m.rateLimited = m.counter("stabilizer_rate_limited_total", "Updates whose total power was clamped by the change-rate limiter")

	m.sessionsActive = m.gauge("sessions_active", "Number of live measurement sessions")
	m.sessionsStarted = m.counter("sessions_started_total", "Measurement sessions started")
	m.sessionsFrozen = m.counter("sessions_frozen_total", "Measurement sessions frozen into a final score")
	m.sessionsExpired = m.counter("sessions_expired_total", "Measurement sessions evicted after their TTL")
	m.framesDuplicate = m.counter("frames_duplicate_total", "Frames rejected because their sequence number was already folded")

	m.scoresSaved = m.counter("scores_saved_total", "Ranking entries saved")
	m.scoresDeleted = m.counter("scores_deleted_total", "Ranking entries deleted")
	m.rankingEntries = m.gauge("ranking_entries", "Entries currently stored in the ranking")
	m.imagesStored = m.counter("images_stored_total", "Snapshot images written to disk")
	m.battlesRecorded = m.counterVec("battles_recorded_total", "Battle results stored by outcome", "outcome")

	m.repositoryUpdateLatency = m.histogramVec("repository_update_latency_milliseconds", "Repository write latency in milliseconds", "backend")
	m.repositoryQueryLatency = m.histogramVec("repository_query_latency_milliseconds", "Repository read latency in milliseconds", "backend")

	m.queueSize = m.gauge("queue_size", "Current number of frames waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Frames enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Frames dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Frames rejected because the queue was full")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time a frame spent queued in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Number of frame workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Frames a worker failed to fold")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.wsConnections = m.gauge("websocket_connections", "Open measurement WebSocket connections")
	m.wsMessages = m.counterVec("websocket_messages_total", "WebSocket messages received by type", "type")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordFrameScored counts one scored frame and its raw total.
func RecordFrameScored(total int, degenerate bool) {
	globalManager.framesScored.Inc()
	globalManager.totalPower.Observe(float64(total))
	if degenerate {
		globalManager.framesDegenerate.Inc()
	}
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordOutliersRejected adds n dropped samples.
func RecordOutliersRejected(n int) {
	if n > 0 {
		globalManager.outliersRejected.Add(float64(n))
	}
}

// RecordStabilizerHold counts an update that kept the previous stable value.
func RecordStabilizerHold() {
	globalManager.stabilizerHolds.Inc()
}

// RecordRateLimited counts an update clamped by the change-rate limiter.
func RecordRateLimited() {
	globalManager.rateLimited.Inc()
}

// UpdateSessionsActive sets the number of live sessions.
func UpdateSessionsActive(count int) {
	globalManager.sessionsActive.Set(float64(count))
}

// RecordSessionStarted increments the started sessions counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordSessionFrozen increments the frozen sessions counter.
func RecordSessionFrozen() {
	globalManager.sessionsFrozen.Inc()
}

// RecordSessionsExpired adds n evicted sessions.
func RecordSessionsExpired(n int) {
	if n > 0 {
		globalManager.sessionsExpired.Add(float64(n))
	}
}

// RecordFrameDuplicate increments the duplicate frames counter.
func RecordFrameDuplicate() {
	globalManager.framesDuplicate.Inc()
}

// RecordScoreSaved increments the saved scores counter.
func RecordScoreSaved() {
	globalManager.scoresSaved.Inc()
}

// RecordScoresDeleted adds n deleted entries.
func RecordScoresDeleted(n int) {
	if n > 0 {
		globalManager.scoresDeleted.Add(float64(n))
	}
}

// UpdateRankingEntries sets the number of stored ranking entries.
func UpdateRankingEntries(count int) {
	globalManager.rankingEntries.Set(float64(count))
}

// RecordImageStored increments the stored images counter.
func RecordImageStored() {
	globalManager.imagesStored.Inc()
}

// RecordBattle counts a stored battle; outcome is "win" or "draw".
func RecordBattle(outcome string) {
	globalManager.battlesRecorded.WithLabelValues(outcome).Inc()
}

// RecordRepositoryUpdateLatency records a repository write for backend.
func RecordRepositoryUpdateLatency(backend string, latencyMs float64) {
	globalManager.repositoryUpdateLatency.WithLabelValues(backend).Observe(latencyMs)
}

// RecordRepositoryQueryLatency records a repository read for backend.
func RecordRepositoryQueryLatency(backend string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(backend).Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a frame waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateWebSocketConnections adjusts the open connection gauge by delta.
func UpdateWebSocketConnections(delta int) {
	globalManager.wsConnections.Add(float64(delta))
}

// RecordWebSocketMessage counts a received message of the given type.
func RecordWebSocketMessage(msgType string) {
	globalManager.wsMessages.WithLabelValues(msgType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

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

// Configure rebuilds the global collectors on a fresh registry with opts
// applied. Call it before anything records and before /metrics is mounted.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
