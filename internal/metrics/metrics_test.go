package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCollector_ExposesCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := New()

	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/health", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	r.GET("/metrics", c.Handler())

	c.EventCreated()
	c.Delivery("sms", "skipped")
	c.UploadGranted("local")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := resp.Body.String()
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, body, "alert_service_events_created_total 1")
	assert.Contains(t, body, `alert_service_notifications_total{channel="sms",outcome="skipped"} 1`)
	assert.Contains(t, body, `alert_service_upload_grants_total{provider="local"} 1`)
	assert.Contains(t, body, `alert_service_http_requests_total{endpoint="/health",method="GET",status="200"} 1`)
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.EventCreated()
	c.Delivery("call", "sent")
	c.UploadGranted("s3")
	c.LiveFeedClients(3)
}
