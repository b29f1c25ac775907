package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

// RequestLogger writes one entry per request once the handler chain has run.
// Server faults log at error, client faults at warn.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.Component("http")
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched:" + c.Request.URL.Path
		}
		status := c.Writer.Status()
		ctx := c.Request.Context()
		fields := append([]interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency_ms", time.Since(began).Milliseconds(),
		}, ctxutil.CorrelationFrom(ctx).LogFields()...)
		if scope, ok := ctxutil.GetScope(ctx); ok {
			fields = append(fields, scope.LogFields()...)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		level := log.Info
		if status >= 500 {
			level = log.Error
		} else if status >= 400 {
			level = log.Warn
		}
		level("request served", fields...)
	}
}
