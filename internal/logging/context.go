// internal/logging/context.go
package logging

import (
	"context"
	"net/url"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}

	if version := VersionFromContext(ctx); version != "" {
		fields = append(fields, zap.String("version", version))
	}

	return fields
}

type runCtxKey struct{}
type versionCtxKey struct{}

// WithRunID tags every entry logged under ctx with the extraction run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the run ID, or "" if none is set.
func RunIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(runCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithVersion tags entries with the version currently being extracted.
func WithVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, versionCtxKey{}, version)
}

// VersionFromContext returns the version, or "" if none is set.
func VersionFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(versionCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// URL returns a field holding raw with any userinfo replaced by [REDACTED].
// Values that do not parse as URLs are logged unchanged.
func URL(key, raw string) zap.Field {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return zap.String(key, raw)
	}
	u.User = url.User("[REDACTED]")
	return zap.String(key, u.String())
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
