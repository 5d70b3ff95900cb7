package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ginLoggerKey    = "logger"
	ginRequestIDKey = "request_id"
)

// GinMiddleware attaches a request-scoped logger to the gin and request
// contexts and writes one access line per request. Requests to skipPaths
// (health probes, metric scrapes) get the logger but no access line.
func GinMiddleware(base *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetString(ginRequestIDKey)
		reqLogger := base.With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Set(ginLoggerKey, reqLogger)

		ctx := WithContext(c.Request.Context(), reqLogger)
		if requestID != "" {
			ctx = WithRequestID(ctx, requestID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}
		accessLine(reqLogger, c, time.Since(start))
	}
}

func accessLine(l *zap.Logger, c *gin.Context, latency time.Duration) {
	status := c.Writer.Status()
	fields := []zap.Field{
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("client_ip", c.ClientIP()),
		zap.Int("body_size", c.Writer.Size()),
	}
	if q := c.Request.URL.RawQuery; q != "" {
		fields = append(fields, zap.String("query", q))
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
	}

	switch {
	case status >= http.StatusInternalServerError:
		l.Error("HTTP Request", fields...)
	case status >= http.StatusBadRequest:
		l.Warn("HTTP Request", fields...)
	default:
		l.Info("HTTP Request", fields...)
	}
}

// Recovery turns a handler panic into a 500 in the API envelope
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := c.GetString(ginRequestIDKey)
			base.Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("error", rec),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":      "ERR_INTERNAL",
					"message":   "Internal server error",
					"requestId": requestID,
				},
			})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request-scoped logger, or a no-op logger
func GetGinLogger(c *gin.Context) *zap.Logger {
	if zl, ok := c.Value(ginLoggerKey).(*zap.Logger); ok {
		return zl
	}
	return zap.NewNop()
}
