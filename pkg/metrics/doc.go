/*
Package metrics provides Prometheus metrics collection and exposition for
docstore's server, storage and certificate authority.

The metrics package defines and registers all docstore metrics using the
Prometheus client library, providing observability into connection
counts, request throughput and latency, storage operation latency, and
query engine behavior. Metrics are exposed via an HTTP endpoint for
scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Connections: active, total, queue depth    │          │
	│  │  Requests: count and latency by message type │          │
	│  │  Storage: op count and latency by op         │          │
	│  │  Query engine: resolve latency, result size  │          │
	│  │  Certificate authority: issuance count       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Connection Metrics:

docstore_connections_active:
  - Type: Gauge
  - Description: Connections currently in NEW/SETUP/READY

docstore_connections_total:
  - Type: Counter
  - Description: Total connections accepted since startup

docstore_outbound_queue_depth{conn_id}:
  - Type: GaugeVec
  - Description: Replies buffered in a connection's outbound queue

Request Metrics:

docstore_requests_total{message_type, outcome}:
  - Type: CounterVec
  - Description: Requests handled by message type and outcome
  - outcome is one of "ok", "application_error", "protocol_error"

docstore_request_duration_seconds{message_type}:
  - Type: HistogramVec
  - Description: Time to dispatch and execute a request

Storage Metrics:

docstore_storage_ops_total{op, outcome}:
  - Type: CounterVec
  - Description: Storage operations by op (insert/update/delete/drop/...) and outcome

docstore_storage_op_duration_seconds{op}:
  - Type: HistogramVec
  - Description: Storage operation latency

Query Engine Metrics:

docstore_query_resolve_duration_seconds:
  - Type: Histogram
  - Description: Time to resolve a query into a matched key set

docstore_query_result_size:
  - Type: Histogram
  - Description: Number of rows matched by a resolved query

Certificate Authority Metrics:

docstore_certificates_issued_total:
  - Type: Counter
  - Description: Certificates issued by the certificate authority

# Usage

	import "github.com/cuemby/docstore/pkg/metrics"

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	timer := metrics.NewTimer()
	// ... dispatch request ...
	timer.ObserveDurationVec(metrics.RequestDuration, "insert")
	metrics.RequestsTotal.WithLabelValues("insert", "ok").Inc()

	http.Handle("/metrics", metrics.Handler())

# Integration Points

This package integrates with:

  - pkg/server: connection lifecycle, request dispatch
  - pkg/storage: mutation and lookup operations
  - pkg/query: query resolution
  - pkg/ca: certificate issuance
  - Prometheus: scrapes /metrics

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
