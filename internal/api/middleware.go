// internal/api/middleware.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verseforge/storyboardmv/internal/utils"
)

// RequestLogger logs one line per request with latency and status.
func RequestLogger() gin.HandlerFunc {
	logger := utils.GetLogger()

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request", map[string]interface{}{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
	}
}

// Recovery converts panics into a 500 response instead of tearing the
// connection down.
func Recovery() gin.HandlerFunc {
	logger := utils.GetLogger()

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered in handler", map[string]interface{}{
					"path":  c.Request.URL.Path,
					"panic": r,
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, APIResponse{
					Success:   false,
					Error:     "internal server error",
					Timestamp: time.Now(),
				})
			}
		}()

		c.Next()
	}
}
