package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureCounter struct {
	records [][]Label
}

func (c *captureCounter) Inc(_ context.Context, labels ...Label) {
	c.records = append(c.records, append([]Label(nil), labels...))
}

func (c *captureCounter) Add(_ context.Context, _ float64, labels ...Label) {
	c.Inc(context.Background(), labels...)
}

type captureHistogram struct {
	records [][]Label
}

func (h *captureHistogram) Record(_ context.Context, _ float64, labels ...Label) {
	h.records = append(h.records, append([]Label(nil), labels...))
}

func labelValue(labels []Label, key string) string {
	for _, label := range labels {
		if label.Key == key {
			return label.Value
		}
	}
	return ""
}

func newCaptureRouter() (*gin.Engine, *captureCounter, *captureHistogram) {
	gin.SetMode(gin.TestMode)
	counter := &captureCounter{}
	histogram := &captureHistogram{}
	router := gin.New()
	router.Use(GinHTTPMiddleware(&HTTPServerMetrics{
		service:      "paygate",
		requestTotal: counter,
		duration:     histogram,
	}))
	return router, counter, histogram
}

func TestGinHTTPMiddlewareUnknownRouteForUnmatchedPath(t *testing.T) {
	router, counter, histogram := newCaptureRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/payments/stripe/tx_1/extra", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.Len(t, counter.records, 1)
	require.Len(t, histogram.records, 1)
	assert.Equal(t, UnknownRoute, labelValue(counter.records[0], LabelRoute))
	assert.Equal(t, "4xx", labelValue(counter.records[0], LabelStatusClass))
}

func TestGinHTTPMiddlewareUsesRouteTemplate(t *testing.T) {
	router, counter, _ := newCaptureRouter()
	router.GET("/v1/payments/:provider/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "approved"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/payments/stripe/stripe_tx_1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, counter.records, 1)
	labels := counter.records[0]
	assert.Equal(t, "/v1/payments/:provider/:id", labelValue(labels, LabelRoute))
	assert.Equal(t, NoErrorKind, labelValue(labels, LabelErrorKind))
	assert.Equal(t, OperationHTTPServer, labelValue(labels, LabelOperation))
	assert.Equal(t, "paygate", labelValue(labels, LabelService))
}

func TestGinHTTPMiddlewareRecordsErrorKind(t *testing.T) {
	router, counter, _ := newCaptureRouter()
	router.POST("/v1/payments", func(c *gin.Context) {
		c.Set(ContextKeyErrorKind, "fraud_blocked")
		c.JSON(http.StatusForbidden, gin.H{"kind": "fraud_blocked"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/payments", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.Len(t, counter.records, 1)
	assert.Equal(t, "fraud_blocked", labelValue(counter.records[0], LabelErrorKind))
	assert.Equal(t, OutcomeError, labelValue(counter.records[0], LabelOutcome))
}

func TestGinHTTPMiddlewareNilMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinHTTPMiddleware(nil))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
