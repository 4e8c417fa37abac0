package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cwrk-planet/glasschat/pkg/logger"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseEnv(t *testing.T) {
	cases := map[string]logger.Env{
		"":           logger.EnvDev,
		"stage":      logger.EnvStage,
		"Staging":    logger.EnvStage,
		"prod":       logger.EnvProd,
		"production": logger.EnvProd,
		"whatever":   logger.EnvDev,
	}
	for raw, want := range cases {
		if got := logger.ParseEnv(raw); got != want {
			t.Fatalf("ParseEnv(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	if got := logger.DetectEnv(); got != logger.EnvDev {
		t.Fatalf("default should be dev, got %q", got)
	}

	t.Setenv("APP_ENV", "prod")
	if got := logger.DetectEnv(); got != logger.EnvProd {
		t.Fatalf("expected prod, got %q", got)
	}
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(logger.Config{
		Service: "chatd",
		Version: "v0.0.1",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Level:   slog.LevelDebug,
	}, &buf)
	slog.Info("hello world")

	out := buf.String()
	if strings.Contains(out, "{") {
		t.Fatalf("expected text output in dev/std, got JSON: %s", out)
	}
	if !strings.Contains(out, "hello world") {
		t.Fatalf("message missing: %s", out)
	}
	if !strings.Contains(out, "service=chatd") || !strings.Contains(out, "env=dev") {
		t.Fatalf("common attrs missing: %s", out)
	}
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(logger.Config{
		Service:          "chatd",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
	}, &buf)
	slog.Info("booted", slog.String("k", "v"))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON line, got %s, err=%v", buf.String(), err)
	}
	if m["msg"] != "booted" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
	if m["service"] != "chatd" || m["env"] != "prod" || m["version"] != "1.2.3" {
		t.Fatalf("attrs missing: %v", m)
	}
	if m["level"] != "INFO" {
		t.Fatalf("level mismatch: %v", m["level"])
	}
	if m["k"] != "v" {
		t.Fatalf("custom field missing: %v", m["k"])
	}
}

func TestInit_ContextCarriesTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(logger.Config{
		Service: "chatd",
		Env:     logger.EnvStage,
		Backend: logger.BackendStd,
	}, &buf)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	slog.InfoContext(ctx, "with trace")
	span.End()

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON in stage/std, got %s, err=%v", buf.String(), err)
	}
	if m["trace_id"] == nil || m["span_id"] == nil {
		t.Fatalf("trace_id/span_id missing in log: %v", m)
	}
}

func TestAttrsFromCtx_NoSpan(t *testing.T) {
	if attrs := logger.AttrsFromCtx(context.Background()); attrs != nil {
		t.Fatalf("expected no attrs without span, got %v", attrs)
	}
}

func TestContextWith_AddsAttrsToContextCalls(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(logger.Config{Env: logger.EnvProd, Backend: logger.BackendStd}, &buf)

	ctx := logger.ContextWith(context.Background(), slog.String("user_id", "u1"))
	ctx = logger.ContextWith(ctx, slog.String("room_id", "r1"))
	slog.InfoContext(ctx, "sent")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON, got %s, err=%v", buf.String(), err)
	}
	if m["user_id"] != "u1" || m["room_id"] != "r1" {
		t.Fatalf("ctx attrs missing: %v", m)
	}
	if _, ok := m["trace_id"]; ok {
		t.Fatalf("unexpected trace_id without span: %v", m)
	}
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(logger.Config{Env: logger.EnvDev}, &buf)

	if logger.FromContext(context.Background()) != logger.L() {
		t.Fatal("expected global logger without ctx logger")
	}

	l := logger.L().With("req_id", "abc")
	ctx := logger.WithLogger(context.Background(), l)
	if logger.FromContext(ctx) != l {
		t.Fatal("expected ctx logger")
	}
}

func TestInitTracing_SpansCarryIDs(t *testing.T) {
	shutdown := logger.InitTracing()
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := logger.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if attrs := logger.AttrsFromCtx(ctx); len(attrs) != 2 {
		t.Fatalf("attrs = %v", attrs)
	}
}
