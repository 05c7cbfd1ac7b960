package telemetry

import (
	"context"
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/mcp-agent-inspector/inspector/hooks"
	"github.com/mcp-agent-inspector/inspector/rtctx"
)

// MaxAttributeBytes is the size bound spec.md places on serialized `*_json`
// attribute values: a value whose UTF-8 encoding exceeds this many bytes is
// truncated to exactly this many bytes and flagged with a companion
// `{key}_truncated` boolean.
const MaxAttributeBytes = 30720

// namespaces maps each hook family with a dedicated attribute namespace (per
// spec.md §4.3) to its `mcp.<segment>.` prefix. Families not present here
// (session-lifecycle, progress) carry no span attributes; they are consumed
// by the lifecycle-to-eventbus bridge instead.
var namespaces = map[hooks.Name]string{
	hooks.AgentCall:     "mcp.agent.",
	hooks.LLMGenerate:   "mcp.llm.",
	hooks.ToolCall:      "mcp.tool.",
	hooks.WorkflowRun:   "mcp.workflow.",
	hooks.RPCRequest:    "mcp.rpc.",
	hooks.ResourceFetch: "mcp.resource.",
	hooks.PromptApply:   "mcp.prompt.",
	hooks.Transport:     "mcp.transport.",
}

// EnrichmentSubscriber translates hook emissions into attributes on the
// span active for the emitting code path. Register it on the hook bus for
// every phase of every namespaced family; HandleEvent is a no-op for
// families with no entry in namespaces and for any emission observed while
// the active span is not recording, per spec.md's rule 3.
type EnrichmentSubscriber struct {
	Tracer Tracer
}

// HandleEvent implements hooks.Subscriber.
func (e EnrichmentSubscriber) HandleEvent(ctx context.Context, name hooks.Name, payload hooks.Payload) error {
	family, ns, ok := familyNamespace(name)
	if !ok {
		return nil
	}
	span := e.Tracer.Span(ctx)
	if !span.IsRecording() {
		return nil
	}
	_ = family

	if sid := rtctx.Get(ctx); sid != rtctx.Unknown {
		span.SetAttribute("session.id", sid)
	}

	for key, value := range payload {
		if key == hooks.KeyContext {
			continue
		}
		if key == hooks.KeyErr {
			if err, ok := value.(error); ok && err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			continue
		}
		attrKey := ns + strings.ReplaceAll(key, "-", "_")
		setAttribute(span, attrKey, value)
	}
	return nil
}

// familyNamespace strips a ".<phase>" suffix from name and looks up its
// attribute namespace.
func familyNamespace(name hooks.Name) (family hooks.Name, namespace string, ok bool) {
	s := string(name)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[:i]
	}
	family = hooks.Name(s)
	ns, ok := namespaces[family]
	return family, ns, ok
}

// setAttribute sets a scalar attribute directly; any other value (map,
// slice, struct, pointer) is serialized to compact JSON under a `_json`
// suffixed key per spec.md rule 1, truncated per rule 2 if it exceeds
// MaxAttributeBytes.
func setAttribute(span Span, key string, value any) {
	switch v := value.(type) {
	case string:
		span.SetAttribute(key, v)
	case bool:
		span.SetAttribute(key, v)
	case int:
		span.SetAttribute(key, v)
	case int64:
		span.SetAttribute(key, v)
	case float64:
		span.SetAttribute(key, v)
	case nil:
		// Absent optional payload field; nothing to record.
	default:
		setJSONAttribute(span, key, v)
	}
}

// setJSONAttribute serializes value to JSON and stores it (truncated if
// necessary) under key+"_json", recording key+"_json_truncated" when the
// byte bound was exceeded. Marshal failures are recorded as a short error
// string rather than silently dropped, so an enrichment bug is visible in
// the trace instead of vanishing.
func setJSONAttribute(span Span, key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		span.SetAttribute(key+"_json", `"<unserializable>"`)
		return
	}
	jsonKey := key + "_json"
	if len(b) > MaxAttributeBytes {
		span.SetAttribute(jsonKey, string(b[:MaxAttributeBytes]))
		span.SetAttribute(jsonKey+"_truncated", true)
		return
	}
	span.SetAttribute(jsonKey, string(b))
}

// CaptureReturn implements the state-capture decorator of spec.md §4.3: it
// invokes fn and, unless isReplay reports that ctx is executing inside a
// durable workflow engine's replay, attaches the serialized return value to
// the active span under `mcp.result.<name>_json`. isReplay may be nil,
// meaning the call site never replays (true for request-scoped and
// local-engine work; Temporal-backed callers should pass
// workflow.IsReplaying wrapped to accept a context.Context).
func CaptureReturn[T any](ctx context.Context, tracer Tracer, name string, isReplay func(context.Context) bool, fn func(context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)
	if err != nil {
		return result, err
	}
	if isReplay != nil && isReplay(ctx) {
		return result, nil
	}
	span := tracer.Span(ctx)
	if !span.IsRecording() {
		return result, nil
	}
	setJSONAttribute(span, "mcp.result."+name, result)
	return result, nil
}
