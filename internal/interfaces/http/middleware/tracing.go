package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext adopts an inbound W3C traceparent header so that request logs
// carry the caller's trace ID. No spans are started here.
func TraceContext() gin.HandlerFunc {
	propagator := propagation.TraceContext{}
	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		if trace.SpanContextFromContext(ctx).IsValid() {
			c.Request = c.Request.WithContext(ctx)
			propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))
		}
		c.Next()
	}
}
