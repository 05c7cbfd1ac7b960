package telemetry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mcp-agent-inspector/inspector/hooks"
	"github.com/mcp-agent-inspector/inspector/rtctx"
	"github.com/mcp-agent-inspector/inspector/telemetry"
)

type capturingExporter struct {
	spans []sdktrace.ReadOnlySpan
}

func (c *capturingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	c.spans = append(c.spans, spans...)
	return nil
}

func (c *capturingExporter) Shutdown(context.Context) error { return nil }

func newTestTracer(t *testing.T) (telemetry.Tracer, *capturingExporter) {
	t.Helper()
	exp := &capturingExporter{}
	provider := telemetry.NewProvider(exp, sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return telemetry.NewTracer(provider.Tracer("test")), exp
}

func attrsOf(t *testing.T, spans []sdktrace.ReadOnlySpan, name string) map[string]string {
	t.Helper()
	for _, s := range spans {
		if s.Name() != name {
			continue
		}
		out := map[string]string{}
		for _, kv := range s.Attributes() {
			out[string(kv.Key)] = kv.Value.Emit()
		}
		return out
	}
	return nil
}

func TestEnrichmentSetsScalarAttributeUnderNamespace(t *testing.T) {
	tracer, exp := newTestTracer(t)
	sub := telemetry.EnrichmentSubscriber{Tracer: tracer}

	ctx, span := tracer.Start(context.Background(), "tool-call")
	err := sub.HandleEvent(ctx, hooks.ToolCallBefore, hooks.Payload{"tool-name": "search"})
	require.NoError(t, err)
	span.End()

	attrs := attrsOf(t, exp.spans, "tool-call")
	assert.Equal(t, "search", attrs["mcp.tool.tool_name"])
}

func TestEnrichmentSkipsNonRecordingSpan(t *testing.T) {
	sub := telemetry.EnrichmentSubscriber{Tracer: telemetry.NewNoopTracer()}
	err := sub.HandleEvent(context.Background(), hooks.ToolCallBefore, hooks.Payload{"tool-name": "search"})
	assert.NoError(t, err)
}

func TestEnrichmentSetsSessionCorrelationAttribute(t *testing.T) {
	tracer, exp := newTestTracer(t)
	sub := telemetry.EnrichmentSubscriber{Tracer: tracer}

	ctx := rtctx.Set(context.Background(), "session-abc123")
	ctx, span := tracer.Start(ctx, "agent-call")
	require.NoError(t, sub.HandleEvent(ctx, hooks.AgentCallBefore, hooks.Payload{"agent": "planner"}))
	span.End()

	attrs := attrsOf(t, exp.spans, "agent-call")
	assert.Equal(t, "session-abc123", attrs["session.id"])
}

func TestEnrichmentSerializesComplexPayloadAsJSON(t *testing.T) {
	tracer, exp := newTestTracer(t)
	sub := telemetry.EnrichmentSubscriber{Tracer: tracer}

	ctx, span := tracer.Start(context.Background(), "llm-generate")
	require.NoError(t, sub.HandleEvent(ctx, hooks.LLMGenerateBefore, hooks.Payload{
		"prompt": map[string]any{"role": "user", "content": "hi"},
	}))
	span.End()

	attrs := attrsOf(t, exp.spans, "llm-generate")
	require.Contains(t, attrs, "mcp.llm.prompt_json")
	assert.Contains(t, attrs["mcp.llm.prompt_json"], `"role":"user"`)
	assert.NotContains(t, attrs, "mcp.llm.prompt_json_truncated")
}

func TestEnrichmentTruncatesOversizedJSONAttribute(t *testing.T) {
	tracer, exp := newTestTracer(t)
	sub := telemetry.EnrichmentSubscriber{Tracer: tracer}

	huge := strings.Repeat("x", telemetry.MaxAttributeBytes+1000)
	ctx, span := tracer.Start(context.Background(), "llm-generate")
	require.NoError(t, sub.HandleEvent(ctx, hooks.LLMGenerateBefore, hooks.Payload{
		"prompt": map[string]any{"content": huge},
	}))
	span.End()

	attrs := attrsOf(t, exp.spans, "llm-generate")
	assert.LessOrEqual(t, len(attrs["mcp.llm.prompt_json"]), telemetry.MaxAttributeBytes)
	assert.Equal(t, "true", attrs["mcp.llm.prompt_json_truncated"])
}

func TestEnrichmentRecordsErrorAndSetsStatus(t *testing.T) {
	tracer, exp := newTestTracer(t)
	sub := telemetry.EnrichmentSubscriber{Tracer: tracer}

	ctx, span := tracer.Start(context.Background(), "tool-call")
	require.NoError(t, sub.HandleEvent(ctx, hooks.ToolCallError, hooks.Payload{
		"tool-name": "search",
		hooks.KeyErr: errors.New("boom"),
	}))
	span.End()

	for _, s := range exp.spans {
		if s.Name() == "tool-call" {
			assert.Equal(t, "Error", s.Status().Code.String())
		}
	}
}

func TestCaptureReturnSkippedDuringReplay(t *testing.T) {
	tracer, exp := newTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "workflow-step")
	result, err := telemetry.CaptureReturn(ctx, tracer, "step", func(context.Context) bool { return true },
		func(context.Context) (string, error) { return "result-value", nil })
	span.End()
	require.NoError(t, err)
	assert.Equal(t, "result-value", result)

	attrs := attrsOf(t, exp.spans, "workflow-step")
	assert.NotContains(t, attrs, "mcp.result.step_json")
}

func TestCaptureReturnRecordsOutsideReplay(t *testing.T) {
	tracer, exp := newTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "workflow-step")
	_, err := telemetry.CaptureReturn(ctx, tracer, "step", nil,
		func(context.Context) (string, error) { return "result-value", nil })
	span.End()
	require.NoError(t, err)

	attrs := attrsOf(t, exp.spans, "workflow-step")
	assert.Contains(t, attrs["mcp.result.step_json"], "result-value")
}
