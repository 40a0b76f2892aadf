// Пакет ctxmeta - метаданные, которые идут через context.Context: request_id,
// источник операции (http, kafka, scheduler, cli) и идентификаторы активного спана.
// HTTP-слой, консьюмер и логгер зависят от него, но не друг от друга.
package ctxmeta

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	KeyRequestID ctxKey = "request_id"
	KeyOrigin    ctxKey = "origin"
)

// Origin - откуда пришла операция над лентами или счётчиками.
type Origin string

const (
	OriginHTTP      Origin = "http"
	OriginKafka     Origin = "kafka"
	OriginScheduler Origin = "scheduler"
	OriginCLI       Origin = "cli"
)

// WithRequestID кладёт request_id в контекст (если пусто - ничего не делает).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, KeyRequestID, requestID)
}

// RequestIDFromContext достаёт request_id из контекста.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, KeyRequestID)
}

// WithOrigin - источник операции; пустой не записывается.
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	if ctx == nil || origin == "" {
		return ctx
	}
	return context.WithValue(ctx, KeyOrigin, origin)
}

func OriginFromContext(ctx context.Context) (Origin, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(KeyOrigin).(Origin); ok && v != "" {
		return v, true
	}
	return "", false
}

// TraceIDFromContext - trace_id активного спана; без спана "", false.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	sc, ok := spanContext(ctx)
	if !ok {
		return "", false
	}
	return sc.TraceID().String(), true
}

// SpanIDFromContext - span_id активного спана.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	sc, ok := spanContext(ctx)
	if !ok {
		return "", false
	}
	return sc.SpanID().String(), true
}

func spanContext(ctx context.Context) (trace.SpanContext, bool) {
	if ctx == nil {
		return trace.SpanContext{}, false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	return sc, sc.IsValid()
}

func stringValue(ctx context.Context, key ctxKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
