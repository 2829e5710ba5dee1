package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/requests/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/requests/:id", "200"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/requests/abc", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/requests/:id", "200"))
	assert.Equal(t, before+1, after)
}

func TestBudgetChecked(t *testing.T) {
	before := testutil.ToFloat64(budgetChecksTotal.WithLabelValues("final", "fail"))
	BudgetChecked("final", false)
	assert.Equal(t, before+1, testutil.ToFloat64(budgetChecksTotal.WithLabelValues("final", "fail")))
}

func TestHandlerServesMetrics(t *testing.T) {
	ReceiptRecorded()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goods_receipts_total")
}
