package ctxmeta_test

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Gunvolt24/goodsfeed/pkg/ctxmeta"
)

func TestWithRequestID_PutAndGet(t *testing.T) {
	parent := context.Background()

	ctx := ctxmeta.WithRequestID(parent, "req-123")
	got, ok := ctxmeta.RequestIDFromContext(ctx)
	if !ok || got != "req-123" {
		t.Fatalf("want ok=true, id=req-123; got ok=%v id=%q", ok, got)
	}

	// Родитель не должен содержать request_id
	if _, parentOk := ctxmeta.RequestIDFromContext(parent); parentOk {
		t.Fatalf("parent context must not contain request_id")
	}
}

func TestWithRequestID_EmptyAndNil(t *testing.T) {
	parent := context.Background()
	if ctx := ctxmeta.WithRequestID(parent, ""); ctx != parent {
		t.Fatalf("WithRequestID with empty id must return the same ctx")
	}

	var nilCtx context.Context
	if ctx := ctxmeta.WithRequestID(nilCtx, "req-1"); ctx != nil {
		t.Fatalf("WithRequestID(nil, ...) must return nil")
	}
	if id, ok := ctxmeta.RequestIDFromContext(nilCtx); ok || id != "" {
		t.Fatalf("RequestIDFromContext(nil) must be empty/false, got id=%q ok=%v", id, ok)
	}
}

func TestRequestIDFromContext_EmptyStoredValue(t *testing.T) {
	// Даже если ключ верный, пустое значение считаем отсутствующим
	ctx := context.WithValue(context.Background(), ctxmeta.KeyRequestID, "")
	if id, ok := ctxmeta.RequestIDFromContext(ctx); ok || id != "" {
		t.Fatalf("empty stored value must be treated as absent, got id=%q ok=%v", id, ok)
	}
}

func TestOrigin(t *testing.T) {
	ctx := ctxmeta.WithOrigin(context.Background(), ctxmeta.OriginKafka)
	got, ok := ctxmeta.OriginFromContext(ctx)
	if !ok || got != ctxmeta.OriginKafka {
		t.Fatalf("origin: got %q ok=%v", got, ok)
	}

	// вложенный вызов переопределяет источник
	got, _ = ctxmeta.OriginFromContext(ctxmeta.WithOrigin(ctx, ctxmeta.OriginCLI))
	if got != ctxmeta.OriginCLI {
		t.Fatalf("override: got %q", got)
	}

	// строка вместо типа Origin не распознаётся
	raw := context.WithValue(context.Background(), ctxmeta.KeyOrigin, "http")
	if _, ok := ctxmeta.OriginFromContext(raw); ok {
		t.Fatalf("plain string must not be recognized as origin")
	}
	if ctx := ctxmeta.WithOrigin(context.Background(), ""); ctx != context.Background() {
		t.Fatalf("empty origin must not change ctx")
	}
}

func TestTraceAndSpanIDs_FromActiveSpan(t *testing.T) {
	// Локальный TracerProvider - без глобальной настройки.
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	traceID, ok := ctxmeta.TraceIDFromContext(ctx)
	if !ok || traceID != span.SpanContext().TraceID().String() {
		t.Fatalf("traceID=%q ok=%v, want %s", traceID, ok, span.SpanContext().TraceID())
	}
	spanID, ok := ctxmeta.SpanIDFromContext(ctx)
	if !ok || spanID != span.SpanContext().SpanID().String() {
		t.Fatalf("spanID=%q ok=%v, want %s", spanID, ok, span.SpanContext().SpanID())
	}
}

func TestTraceAndSpanIDs_NoSpan(t *testing.T) {
	if id, ok := ctxmeta.TraceIDFromContext(context.Background()); ok || id != "" {
		t.Fatalf("TraceIDFromContext(background) => %q,%v; want \"\", false", id, ok)
	}
	var nilCtx context.Context
	if id, ok := ctxmeta.SpanIDFromContext(nilCtx); ok || id != "" {
		t.Fatalf("SpanIDFromContext(nil) => %q,%v; want \"\", false", id, ok)
	}
}
