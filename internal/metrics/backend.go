package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search backend Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostdex",
			Name:      "backend_requests_total",
			Help:      "Total number of search backend operations",
		},
		[]string{"driver", "op", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hostdex",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"driver", "op"},
	)

	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostdex",
			Name:      "ingest_documents_total",
			Help:      "Ingested host records by outcome",
		},
		[]string{"driver", "outcome"}, // indexed / skipped / failed
	)
)

var registerBackendOnce sync.Once

// RegisterBackendMetrics registers backend metrics with the default registry. Safe to call twice.
func RegisterBackendMetrics() {
	registerBackendOnce.Do(func() {
		prometheus.MustRegister(
			BackendRequestsTotal,
			BackendRequestDuration,
			IngestDocumentsTotal,
		)
	})
}

// ObserveBackend records one backend operation.
func ObserveBackend(driver, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	BackendRequestsTotal.WithLabelValues(driver, op, status).Inc()
	BackendRequestDuration.WithLabelValues(driver, op).Observe(time.Since(start).Seconds())
}

// ObserveIngest records bulk ingest outcomes. Index names are client-chosen,
// so they go to logs, never to labels.
func ObserveIngest(driver string, indexed, skipped, failed int) {
	IngestDocumentsTotal.WithLabelValues(driver, "indexed").Add(float64(indexed))
	IngestDocumentsTotal.WithLabelValues(driver, "skipped").Add(float64(skipped))
	IngestDocumentsTotal.WithLabelValues(driver, "failed").Add(float64(failed))
}
