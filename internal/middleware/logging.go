package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Logging logs one line per request using slog.
// If logger is nil, slog.Default is used.
func Logging(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		id, _ := RequestIDFromContext(c.Request.Context())
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"bytes_written", c.Writer.Size(),
			"request_id", id,
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), "http request", attrs...)
			return
		}
		logger.InfoContext(c.Request.Context(), "http request", attrs...)
	}
}

// Recover turns a panic into a 500 with the error envelope.
// If logger is nil, slog.Default is used.
func Recover(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", rec, "method", c.Request.Method, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message": "Internal server error",
					"error":   "StoreUnavailable",
				})
			}
		}()
		c.Next()
	}
}
