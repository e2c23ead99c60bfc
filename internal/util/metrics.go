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

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	LabelsPurchasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labels_purchased_total",
		Help: "Total number of shipping labels purchased",
	})

	LabelsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labels_refunded_total",
		Help: "Total number of shipping labels refunded",
	})

	PickScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pick_scans_total",
		Help: "Total number of pick item scans",
	}, []string{"result"})

	BatchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batches_created_total",
		Help: "Total number of picking lists created",
	})

	BatchesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batches_completed_total",
		Help: "Total number of picking lists marked done",
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of carrier webhook events received",
	}, []string{"action"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of outbound order notifications",
	}, []string{"result"})

	ShippingAPILatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shipping_api_latency_seconds",
		Help:    "Latency of shipping provider API calls",
		Buckets: prometheus.DefBuckets,
	})

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
