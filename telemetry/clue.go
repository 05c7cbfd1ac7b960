package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"goa.design/clue/log"
)

// ClueLogger delegates to goa.design/clue/log, reading formatting and debug
// settings from the context the way the teacher's own runtime does (set via
// log.Context and log.WithFormat/log.WithDebug upstream of this package).
type ClueLogger struct{}

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger { return ClueLogger{} }

func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := []log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}
	log.Warn(ctx, append(fielders, kvSliceToClue(keyvals)...)...)
}

func (ClueLogger) Error(ctx context.Context, msg string, err error, keyvals ...any) {
	fielders := append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)
	log.Error(ctx, err, fielders...)
}

// kvSliceToClue converts an alternating key/value slice into clue's
// log.Fielder slice, skipping a non-string key rather than panicking.
func kvSliceToClue(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fielders = append(fielders, log.KV{K: k, V: keyvals[i+1]})
	}
	return fielders
}

// ClueMetrics delegates counters and histograms to the global OTel
// MeterProvider, matching the teacher's ClueMetrics. Configure the global
// provider (e.g. via clue.ConfigureOpenTelemetry) before use.
type ClueMetrics struct {
	meter metric.Meter
}

// NewClueMetrics constructs a Metrics recorder scoped to this module.
func NewClueMetrics() Metrics {
	return &ClueMetrics{meter: otel.Meter("github.com/mcp-agent-inspector/inspector")}
}

func (m *ClueMetrics) IncrCounter(ctx context.Context, name string, keyvals ...any) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(kvSliceToAttrs(keyvals)...))
}

func (m *ClueMetrics) ObserveDuration(ctx context.Context, name string, seconds float64, keyvals ...any) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(ctx, seconds, metric.WithAttributes(kvSliceToAttrs(keyvals)...))
}
