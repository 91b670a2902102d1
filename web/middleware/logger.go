package middleware

import (
	"time"

	"github.com/mhsanaei/3x-ui-usage/logger"

	"github.com/gin-gonic/gin"
)

// AccessLogMiddleware logs one line per request through the application logger.
func AccessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		line := "%s %s %s %d %s"
		args := []any{c.ClientIP(), c.Request.Method, c.Request.URL.RequestURI(), status, time.Since(start).Round(time.Microsecond)}
		switch {
		case status >= 500:
			logger.Warningf(line, args...)
		default:
			logger.Debugf(line, args...)
		}
	}
}
