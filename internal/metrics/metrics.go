// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TransactionsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendwise_transactions_written_total",
			Help: "Ledger writes applied, by operation",
		},
		[]string{"operation"},
	)
	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendwise_imports_total",
			Help: "Backup imports, by result",
		},
		[]string{"result"},
	)
	ImportedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendwise_imported_records_total",
			Help: "Records handled by imports, by outcome (inserted, failed, skipped)",
		},
		[]string{"outcome"},
	)
	ExportedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spendwise_exported_records_total",
			Help: "Records written into backup exports",
		},
	)
	CloudBackups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendwise_cloud_backups_total",
			Help: "Cloud backup operations, by operation and result",
		},
		[]string{"operation", "result"},
	)
	QueueLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spendwise_write_queue_latency_seconds",
			Help:    "Time from submission to completion of a queued write",
			Buckets: prometheus.DefBuckets,
		},
	)
	SyncMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendwise_sync_messages_total",
			Help: "Change messages handled by the sync worker, by result",
		},
		[]string{"result"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendwise_http_requests_total",
			Help: "HTTP requests served, by route and status class",
		},
		[]string{"route", "status"},
	)
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendwise_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by route",
		},
		[]string{"route"},
	)
	SuspiciousRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spendwise_suspicious_requests_total",
			Help: "Requests matching a known attack pattern",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TransactionsWritten,
		ImportsTotal,
		ImportedRecords,
		ExportedRecords,
		CloudBackups,
		QueueLatency,
		SyncMessages,
		HTTPRequests,
		RateLimited,
		SuspiciousRequests,
	)
}

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSince records the seconds elapsed since start into h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
