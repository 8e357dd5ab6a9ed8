package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =====================================================
// PROMETHEUS METRICS
// =====================================================
// Registered once at startup; exposed on /metrics.

var (
	RefundsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_created_total",
		Help: "Refund requests accepted, by refund method.",
	}, []string{"method"})

	RefundsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_completed_total",
		Help: "Refunds reaching COMPLETED, by gateway type.",
	}, []string{"gateway"})

	RefundsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_failed_total",
		Help: "Refunds reaching FAILED or REJECTED, by cause.",
	}, []string{"cause"})

	TaskProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_tasks_processed_total",
		Help: "Worker task outcomes, by task type and result.",
	}, []string{"type", "result"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_seconds",
		Help:    "Latency of outbound gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation"})
)
