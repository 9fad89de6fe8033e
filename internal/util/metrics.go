package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "document_operations_total",
		Help: "Total number of document operations",
	}, []string{"collection", "operation", "result"})

	DocumentOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "document_operation_latency_seconds",
		Help:    "Latency of document store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of collection cache hits",
	}, []string{"key"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of collection cache misses",
	}, []string{"key"})

	CacheErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_errors_total",
		Help: "Total number of swallowed cache failures",
	})

	AuditWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_writes_total",
		Help: "Total number of audit log entries written",
	}, []string{"action"})

	AuditFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_failures_total",
		Help: "Total number of audit log writes that failed",
	})

	AuditEntriesPrunedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_entries_pruned_total",
		Help: "Total number of audit log entries removed by retention",
	}, []string{"reason"})

	InventoryReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reconciliations_total",
		Help: "Total number of inventory record changes",
	}, []string{"change_type", "result"})

	InventoryLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_lock_wait_seconds",
		Help:    "Time spent waiting for per-product inventory locks",
		Buckets: prometheus.DefBuckets,
	})

	LowStockDetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_detections_total",
		Help: "Total number of low stock detections",
	})

	NotificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Total number of notifications persisted",
	}, []string{"type"})

	BackupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backups_total",
		Help: "Total number of backup and restore runs",
	}, []string{"operation", "result"})

	ChangeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_events_total",
		Help: "Total number of change events by direction",
	}, []string{"direction"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
