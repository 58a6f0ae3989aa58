package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_ingested_total",
		Help: "Total number of new orders ingested from the webhook",
	})

	OrdersDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_duplicate_total",
		Help: "Total number of webhook deliveries ignored as duplicates",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order ingestions",
	}, []string{"reason"})

	WhatsAppSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whatsapp_sent_total",
		Help: "Total number of WhatsApp messages sent successfully",
	})

	WhatsAppFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_failed_total",
		Help: "Total number of failed WhatsApp send attempts",
	}, []string{"reason"})

	WhatsAppSendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whatsapp_send_latency_seconds",
		Help:    "Latency of WhatsApp provider calls",
		Buckets: prometheus.DefBuckets,
	})

	StoreRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_request_duration_seconds",
		Help:    "Latency of data store REST requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "table"})

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
