package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	eventsCreated       prometheus.Counter
	deliveries          *prometheus.CounterVec
	uploadGrants        *prometheus.CounterVec
	liveFeedClients     prometheus.Gauge
}

func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_service_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_service_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	c.eventsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alert_service_events_created_total",
		Help: "Events persisted",
	})
	c.deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_service_notifications_total",
			Help: "Notification attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
	c.uploadGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_service_upload_grants_total",
			Help: "Upload slots granted by provider",
		},
		[]string{"provider"},
	)
	c.liveFeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alert_service_live_feed_clients",
		Help: "Connected live feed WebSocket clients",
	})

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.eventsCreated,
		c.deliveries,
		c.uploadGrants,
		c.liveFeedClients,
	)
	return c
}

func (c *Collector) EventCreated() {
	if c == nil {
		return
	}
	c.eventsCreated.Inc()
}

func (c *Collector) Delivery(channel, outcome string) {
	if c == nil {
		return
	}
	c.deliveries.WithLabelValues(channel, outcome).Inc()
}

func (c *Collector) UploadGranted(provider string) {
	if c == nil {
		return
	}
	c.uploadGrants.WithLabelValues(provider).Inc()
}

func (c *Collector) LiveFeedClients(n int) {
	if c == nil {
		return
	}
	c.liveFeedClients.Set(float64(n))
}

// Middleware records request counts and latencies per route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := ctx.Request.Method
		c.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return func(ctx *gin.Context) {
		h.ServeHTTP(ctx.Writer, ctx.Request)
	}
}
