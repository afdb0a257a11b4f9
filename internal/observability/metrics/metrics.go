// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds application-level instruments.
type Metrics struct {
	paymentsInitiated *prometheus.CounterVec
	paymentsCompleted prometheus.Counter
	paymentsFailed    prometheus.Counter
	coverageDays      prometheus.Counter
	reconcileRuns     *prometheus.CounterVec
	gatewayCalls      *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		paymentsInitiated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mwukenya_payments_initiated_total",
			Help: "Payment initiations by outcome.",
		}, []string{"outcome"}),
		paymentsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mwukenya_payments_completed_total",
			Help: "Payments transitioned to COMPLETED.",
		}),
		paymentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mwukenya_payments_failed_total",
			Help: "Payments transitioned to FAILED.",
		}),
		coverageDays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mwukenya_coverage_days_materialized_total",
			Help: "Coverage ledger rows written on completion.",
		}),
		reconcileRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mwukenya_reconcile_payments_total",
			Help: "Stale pending payments handled by the reconciliation worker.",
		}, []string{"result"}),
		gatewayCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mwukenya_gateway_calls_total",
			Help: "Mobile-money gateway calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) RecordPaymentInitiated(outcome string) {
	if m == nil {
		return
	}
	m.paymentsInitiated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordPaymentCompleted(days int) {
	if m == nil {
		return
	}
	m.paymentsCompleted.Inc()
	m.coverageDays.Add(float64(days))
}

func (m *Metrics) RecordPaymentFailed() {
	if m == nil {
		return
	}
	m.paymentsFailed.Inc()
}

func (m *Metrics) RecordReconcile(result string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordGatewayCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(operation, outcome).Inc()
}

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "mwukenya_http_request_duration_seconds",
	Help:    "HTTP request latency by route and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// GinMiddleware records per-request latency.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		httpDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
