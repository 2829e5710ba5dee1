package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	requestsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_requests_created_total",
			Help: "Purchase requests created, by category",
		},
		[]string{"category"},
	)

	approvalDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Approval step decisions, by decision",
		},
		[]string{"decision"},
	)

	budgetChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_checks_total",
			Help: "Budget checks, by call site and outcome",
		},
		[]string{"stage", "outcome"},
	)

	purchaseOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_orders_total",
			Help: "Purchase order lifecycle events",
		},
		[]string{"event"},
	)

	goodsReceiptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goods_receipts_total",
			Help: "Goods receipts recorded",
		},
	)

	overReceiptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goods_over_receipts_total",
			Help: "Receipt lines that pushed an order line past its ordered quantity",
		},
	)

	collaboratorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_failures_total",
			Help: "Failed best-effort calls to notification, document and file collaborators",
		},
		[]string{"collaborator"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		requestsCreatedTotal,
		approvalDecisionsTotal,
		budgetChecksTotal,
		purchaseOrdersTotal,
		goodsReceiptsTotal,
		overReceiptsTotal,
		collaboratorFailuresTotal,
	)
}

func RequestCreated(category string)   { requestsCreatedTotal.WithLabelValues(category).Inc() }
func DecisionRecorded(decision string) { approvalDecisionsTotal.WithLabelValues(decision).Inc() }
func OrderEvent(event string)          { purchaseOrdersTotal.WithLabelValues(event).Inc() }
func ReceiptRecorded()                 { goodsReceiptsTotal.Inc() }
func OverReceipt()                     { overReceiptsTotal.Inc() }
func CollaboratorFailed(name string)   { collaboratorFailuresTotal.WithLabelValues(name).Inc() }

// BudgetChecked counts a budget check at stage ("create", "final" or "query").
func BudgetChecked(stage string, pass bool) {
	outcome := "pass"
	if !pass {
		outcome = "fail"
	}
	budgetChecksTotal.WithLabelValues(stage, outcome).Inc()
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
