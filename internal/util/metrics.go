package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of successful order status transitions",
	}, []string{"to_status"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	}, []string{"reason"})

	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_reconciliations_total",
		Help: "Total number of reconciliation attempts by outcome",
	}, []string{"outcome"})

	ExternalRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "external_request_latency_seconds",
		Help:    "Latency of ERP and carrier calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"target"})

	NotificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Total number of notifications persisted",
	}, []string{"type"})

	NotificationEmailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_emails_sent_total",
		Help: "Total number of notification emails delivered",
	})

	NotificationEmailsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_emails_failed_total",
		Help: "Total number of notification emails that failed to send",
	})

	BulkRowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_rows_processed_total",
		Help: "Total number of bulk ingestion rows by result",
	}, []string{"result"})

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
