package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewProvider builds an SDK TracerProvider that exports finished spans
// through exp via a BatchSpanProcessor — the off-hot-path batching spec.md
// C4 calls "the framework's batch span processor." Callers must call
// Shutdown on the returned provider during graceful shutdown so the batch
// processor flushes before the process exits.
func NewProvider(exp sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	all := append([]sdktrace.TracerProviderOption{sdktrace.WithBatcher(exp)}, opts...)
	return sdktrace.NewTracerProvider(all...)
}

// NewTracer wraps an OTel trace.Tracer obtained from a TracerProvider.
func NewTracer(t trace.Tracer) Tracer {
	return otelTracer{tracer: t}
}

type otelTracer struct {
	tracer trace.Tracer
}

func (t otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

// Span retrieves the span active on ctx via trace.SpanFromContext. When no
// span has been started on ctx, OTel returns a non-recording no-op span, so
// enrichment's "no-op on no active span" rule falls out of IsRecording
// without any extra branching here.
func (t otelTracer) Span(ctx context.Context) Span {
	return otelSpan{span: trace.SpanFromContext(ctx)}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(toKeyValue(key, value))
}

func (s otelSpan) AddEvent(name string, keyvals ...any) {
	s.span.AddEvent(name, trace.WithAttributes(kvSliceToAttrs(keyvals)...))
}

func (s otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

func (s otelSpan) End() {
	s.span.End()
}

func (s otelSpan) IsRecording() bool {
	return s.span.IsRecording()
}

// toKeyValue converts a Go value into an attribute.KeyValue with a
// type-switch over the scalar kinds OTel natively supports, falling back to
// fmt.Sprintf for anything else. Grounded on the teacher's
// runtime/agent/telemetry/clue.go kvSliceToAttrs/tagsToAttrs helpers.
func toKeyValue(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// kvSliceToAttrs converts an alternating key/value slice into attributes,
// skipping a trailing odd key and any non-string key, matching the
// defensive parsing in the teacher's kvSliceToClue helper.
func kvSliceToAttrs(keyvals []any) []attribute.KeyValue {
	if len(keyvals) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		out = append(out, toKeyValue(key, keyvals[i+1]))
	}
	return out
}
