package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alert-service/internal/logging"
)

func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		logger.WithFields(logging.Fields{
			"method":  method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("Request")
	}
}

// APIKeyMiddleware accepts the key from the X-API-Key header or the api_key
// query parameter. Anything else is rejected with 401.
func APIKeyMiddleware(key string, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader("X-API-Key")
		if given == "" {
			given = c.Query("api_key")
		}
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			logger.Warnf("Unauthorized request: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
