package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
)

// NewNoopLogger returns a Logger that discards everything. Used in tests and
// whenever a host process does not wire a concrete logger.
func NewNoopLogger() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...any)        {}
func (noopLogger) Info(context.Context, string, ...any)         {}
func (noopLogger) Warn(context.Context, string, ...any)         {}
func (noopLogger) Error(context.Context, string, error, ...any) {}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) IncrCounter(context.Context, string, ...any)            {}
func (noopMetrics) ObserveDuration(context.Context, string, float64, ...any) {}

// NewNoopTracer returns a Tracer whose spans are never recording. Useful in
// tests that exercise the hook bus and enrichment subscriber without
// needing a real OTel SDK pipeline wired up.
func NewNoopTracer() Tracer { return noopTracer{} }

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopTracer) Span(ctx context.Context) Span { return noopSpan{} }

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any)         {}
func (noopSpan) AddEvent(string, ...any)          {}
func (noopSpan) SetStatus(codes.Code, string)     {}
func (noopSpan) RecordError(error)                {}
func (noopSpan) End()                             {}
func (noopSpan) IsRecording() bool                { return false }
