package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alert-service/internal/config"
	"alert-service/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware())
		r.GET("/metrics", h.metrics.Handler())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "alert-service"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", h.Ready)

	// Uploads are open so devices can push media before they hold a session.
	r.POST("/api/presign", h.Presign)
	r.PUT("/upload/:key", h.UploadLocal)

	auth := r.Group("/", APIKeyMiddleware(cfg.API.Key, logger))
	{
		auth.GET("/upload/:key", h.DownloadLocal)

		// Events
		auth.POST("/api/events", h.CreateEvent)
		auth.GET("/api/events", h.ListEvents)
		auth.GET("/api/events/stream", h.Stream)
		auth.PUT("/api/events/:id/ack", h.AcknowledgeEvent)
		auth.POST("/api/notify/:id", h.NotifyEvent)
	}
	return r
}
