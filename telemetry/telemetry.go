// Package telemetry implements span model and enrichment (C3): it exposes
// a logging/metrics/tracing abstraction modeled on goa-ai's clue-backed
// telemetry package, and a hook subscriber that turns hook bus emissions
// into attributes on the span currently active for the emitting code path.
//
// Spans themselves are real go.opentelemetry.io/otel spans, recorded by an
// go.opentelemetry.io/otel/sdk/trace.TracerProvider. This is a deliberate
// choice: the OTel SDK already provides "the framework's batch span
// processor" spec.md's C4 performance contract refers to, plus the
// ReadOnlySpan view a SpanExporter needs, so the file exporter in package
// export is implemented as a real sdktrace.SpanExporter rather than a
// bespoke pipeline.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
)

type (
	// Logger is the ambient structured logger. Implementations must be
	// safe for concurrent use.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, err error, keyvals ...any)
	}

	// Metrics is the ambient metrics recorder.
	Metrics interface {
		IncrCounter(ctx context.Context, name string, keyvals ...any)
		ObserveDuration(ctx context.Context, name string, seconds float64, keyvals ...any)
	}

	// Tracer starts new spans and retrieves the span active on a context.
	Tracer interface {
		// Start begins a new span named name as a child of any span active
		// on ctx, returning a derived context carrying the new span.
		Start(ctx context.Context, name string) (context.Context, Span)
		// Span returns the span currently active on ctx. If none is
		// active, the returned Span is non-nil but not recording, so
		// callers never need a nil check — only an IsRecording check,
		// matching spec.md C3's "no-op on no active span" rule.
		Span(ctx context.Context) Span
	}

	// Span is the enrichment surface for a single span. It mirrors the
	// subset of go.opentelemetry.io/otel/trace.Span that span enrichment
	// needs.
	Span interface {
		SetAttribute(key string, value any)
		AddEvent(name string, keyvals ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error)
		End()
		IsRecording() bool
	}
)
