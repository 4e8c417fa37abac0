package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor logs each call, turns panics into codes.Internal
// and bounds calls that arrive without a deadline by timeout.
func UnaryServerInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if _, ok := ctx.Deadline(); !ok && timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		defer observe(ctx, "unary", info.FullMethod, time.Now(), &err)
		return handler(ctx, req)
	}
}

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer observe(ss.Context(), "stream", info.FullMethod, time.Now(), &err)
		return handler(srv, ss)
	}
}

// observe must be deferred directly so recover sees the handler's panic.
func observe(ctx context.Context, kind, method string, start time.Time, err *error) {
	if r := recover(); r != nil {
		slog.ErrorContext(ctx, "grpc handler panic",
			slog.String("kind", kind),
			slog.String("method", method),
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())))
		*err = status.Error(codes.Internal, "internal server error")
	}

	attrs := []slog.Attr{
		slog.String("kind", kind),
		slog.String("method", method),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	}
	level := slog.LevelDebug
	if *err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("code", status.Code(*err).String()), slog.Any("err", *err))
	}
	slog.LogAttrs(ctx, level, "grpc call", attrs...)
}
