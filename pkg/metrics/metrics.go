package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Query metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beryldb_queries_total",
			Help: "Total number of queries processed by command and error kind",
		},
		[]string{"command", "kind"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beryldb_query_duration_seconds",
			Help:    "Time spent running a query on a flusher worker",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Flusher (worker pool) metrics
	FlusherQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beryldb_flusher_queue_depth",
			Help: "Current number of queries waiting in the inbound flusher queue",
		},
	)

	FlusherWorkersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beryldb_flusher_workers_total",
			Help: "Number of worker goroutines in the flusher pool",
		},
	)

	DispatcherQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beryldb_dispatcher_queue_depth",
			Help: "Current number of queries waiting in the outbound dispatcher queue",
		},
	)

	// Storage metrics
	DatabasesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beryldb_databases_total",
			Help: "Total number of open logical databases",
		},
	)

	KeysTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beryldb_keys_total",
			Help: "Approximate number of physical keys per database",
		},
		[]string{"database"},
	)

	BloomFalsePositives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beryldb_bloom_false_positives_total",
			Help: "Number of bloom filter hits that missed on the underlying store",
		},
		[]string{"database"},
	)

	BloomNegatives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beryldb_bloom_negatives_total",
			Help: "Number of lookups short-circuited by a negative bloom filter result",
		},
		[]string{"database"},
	)

	// Timer subsystem metrics
	ExpiresPendingTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beryldb_expires_pending_total",
			Help: "Total number of pending entries in the expire index",
		},
	)

	FuturesPendingTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beryldb_futures_pending_total",
			Help: "Total number of pending entries in the future index",
		},
	)

	ExpiresFiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beryldb_expires_fired_total",
			Help: "Total number of expire entries flushed",
		},
	)

	FuturesFiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beryldb_futures_fired_total",
			Help: "Total number of future entries flushed",
		},
	)

	// Connection metrics
	ConnectionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "beryldb_connections_total",
			Help: "Total number of open client connections",
		},
	)

	IteratorChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beryldb_iterator_chunks_total",
			Help: "Total number of partial-result chunks flushed by streaming queries",
		},
		[]string{"command"},
	)
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(FlusherQueueDepth)
	prometheus.MustRegister(FlusherWorkersTotal)
	prometheus.MustRegister(DispatcherQueueDepth)
	prometheus.MustRegister(DatabasesTotal)
	prometheus.MustRegister(KeysTotal)
	prometheus.MustRegister(BloomFalsePositives)
	prometheus.MustRegister(BloomNegatives)
	prometheus.MustRegister(ExpiresPendingTotal)
	prometheus.MustRegister(FuturesPendingTotal)
	prometheus.MustRegister(ExpiresFiredTotal)
	prometheus.MustRegister(FuturesFiredTotal)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(IteratorChunksTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
