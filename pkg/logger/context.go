package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type (
	loggerKey struct{}
	attrsKey  struct{}
)

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request-scoped logger or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return L()
}

// ContextWith appends attrs that every *Context log call under ctx carries.
func ContextWith(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// AttrsFromCtx returns the ContextWith attrs plus trace_id/span_id of the
// active span, or nil when there are none.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	stored, _ := ctx.Value(attrsKey{}).([]slog.Attr)

	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		if len(stored) == 0 {
			return nil
		}
		return stored
	}

	out := make([]slog.Attr, 0, len(stored)+2)
	out = append(out, stored...)
	return append(out,
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
