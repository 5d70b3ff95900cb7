package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	billIDKey    contextKey = "bill_id"
	importIDKey  contextKey = "import_id"
)

// WithContext attaches a logger to the context
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the attached logger, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID records the request ID on the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithBillID records the bill being worked on
func WithBillID(ctx context.Context, billID string) context.Context {
	return context.WithValue(ctx, billIDKey, billID)
}

// WithImportID records the import run
func WithImportID(ctx context.Context, importID string) context.Context {
	return context.WithValue(ctx, importIDKey, importID)
}

// GetRequestID returns the request ID, or ""
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// GetBillID returns the bill ID, or ""
func GetBillID(ctx context.Context) string {
	return stringValue(ctx, billIDKey)
}

// GetImportID returns the import run ID, or ""
func GetImportID(ctx context.Context) string {
	return stringValue(ctx, importIDKey)
}

// GetTraceID returns the active span's trace ID, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// L returns base enriched with the correlation fields found on ctx. A nil
// base falls back to the logger attached to ctx.
//
//	logger.L(ctx, s.logger).Info("allocation committed", zap.Int("written", n))
func L(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = FromContext(ctx)
	}

	fields := make([]zap.Field, 0, 5)
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetBillID(ctx); id != "" {
		fields = append(fields, zap.String("bill_id", id))
	}
	if id := GetImportID(ctx); id != "" {
		fields = append(fields, zap.String("import_id", id))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
