// Package metrics holds the process wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration observes HTTP request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldlog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_ledger_operations_total",
			Help: "Daily progress ledger operations by outcome code",
		},
		[]string{"operation", "code"},
	)
	maxDepthRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldlog_max_depth_recomputes_total",
			Help: "Max depth values rebuilt from surviving records",
		},
		[]string{"method"},
	)
	aggregateDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldlog_aggregate_drift_projects",
			Help: "Projects whose aggregate disagreed with their records at the last reconciliation",
		},
	)
)

// RecordLedgerOperation counts one ledger operation. code is "ok" on success.
func RecordLedgerOperation(operation, code string) {
	ledgerOperations.WithLabelValues(operation, code).Inc()
}

// RecordMaxDepthRecompute counts a max depth rebuild for method.
func RecordMaxDepthRecompute(method string) {
	maxDepthRecomputes.WithLabelValues(method).Inc()
}

// SetAggregateDrift publishes the number of drifted projects.
func SetAggregateDrift(n int) {
	aggregateDrift.Set(float64(n))
}
