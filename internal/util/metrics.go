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

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order creation attempts",
	}, []string{"reason"})

	OrderStatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_updates_total",
		Help: "Total number of order status updates",
	}, []string{"status"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	NotificationsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_published_total",
		Help: "Total number of order status notifications published",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of notification publishes that errored",
	})

	ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of chat messages processed",
	})

	ChatErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_errors_total",
		Help: "Total number of chat messages that failed processing",
	})

	AssistantRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_runs_total",
		Help: "Total number of assistant runs by terminal status",
	}, []string{"status"})

	AssistantRunLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_run_latency_seconds",
		Help:    "Latency of assistant runs from submit to terminal state",
		Buckets: prometheus.DefBuckets,
	})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_tool_calls_total",
		Help: "Total number of assistant tool calls executed",
	}, []string{"tool"})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections_active",
		Help: "Number of active realtime connections",
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
