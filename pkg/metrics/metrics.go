package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docstore_connections_active",
			Help: "Number of connections currently in the NEW/SETUP/READY states",
		},
	)

	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_connections_total",
			Help: "Total number of connections accepted",
		},
	)

	OutboundQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docstore_outbound_queue_depth",
			Help: "Number of replies buffered in a connection's outbound queue",
		},
		[]string{"conn_id"},
	)

	// Request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_requests_total",
			Help: "Total number of requests handled, by message type and outcome",
		},
		[]string{"message_type", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_request_duration_seconds",
			Help:    "Time taken to dispatch and execute a request, by message type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"message_type"},
	)

	FrameBytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_frame_bytes_read_total",
			Help: "Total bytes read off the wire across all frame payloads",
		},
	)

	FrameBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_frame_bytes_written_total",
			Help: "Total bytes written to the wire across all frame payloads",
		},
	)

	// Storage metrics
	StorageOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_storage_ops_total",
			Help: "Total number of storage operations, by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	StorageOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_storage_op_duration_seconds",
			Help:    "Time taken by a storage operation, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Query engine metrics
	QueryResolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docstore_query_resolve_duration_seconds",
			Help:    "Time taken to resolve a query into a set of data keys",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryResultSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docstore_query_result_size",
			Help:    "Number of rows matched by a resolved query",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	// Certificate authority metrics
	CertificatesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_certificates_issued_total",
			Help: "Total number of certificates issued by the certificate authority",
		},
	)
)

func init() {
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(OutboundQueueDepth)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(FrameBytesRead)
	prometheus.MustRegister(FrameBytesWritten)
	prometheus.MustRegister(StorageOpsTotal)
	prometheus.MustRegister(StorageOpDuration)
	prometheus.MustRegister(QueryResolveDuration)
	prometheus.MustRegister(QueryResultSize)
	prometheus.MustRegister(CertificatesIssuedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
