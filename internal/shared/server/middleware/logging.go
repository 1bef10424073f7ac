package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	ReviewIDKey         = "reviewId"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request and counts it.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		metrics.ObserveRequest(c.Request.Method, c.FullPath(), status)

		telemetry.Info("request.complete", map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            status,
			"status_transition": c.GetString(StatusTransitionKey),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           UserIDFromContext(c),
			"review_id":         c.GetString(ReviewIDKey),
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
