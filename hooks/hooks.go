// Package hooks implements the instrumentation hook bus: a fixed catalogue
// of named observation points at which the agent framework emits structured
// payloads to registered subscribers. It decouples framework emit sites from
// observers such as the span-enrichment subscriber in package telemetry and
// the session-lifecycle subscriber in package session, whose notifications
// are republished onto the SSE event bus.
//
// Unknown hook names are accepted as no-ops by Emit: callers may emit names
// outside the catalogue below without registering them first, and doing so
// costs one map lookup under a read lock.
package hooks

import "context"

// Name identifies a named observation point. Names outside Catalogue are
// legal; Emit treats an unregistered name as a no-op.
type Name string

// Hook family roots. Each family fans out into phase-qualified names, e.g.
// AgentCall+".before", AgentCall+".after", AgentCall+".error".
const (
	AgentCall      Name = "agent-call"
	LLMGenerate    Name = "llm-generate"
	ToolCall       Name = "tool-call"
	WorkflowRun    Name = "workflow-run"
	RPCRequest     Name = "rpc-request"
	ResourceFetch  Name = "resource-fetch"
	PromptApply    Name = "prompt-apply"
	SessionLife    Name = "session-lifecycle"
	ProgressFamily Name = "progress"
	Transport      Name = "transport"
)

// Phase-qualified names for the catalogue in spec.md §4.2. Families with
// only a subset of {before, after, error} use the phases that family
// actually supports; session-lifecycle, progress, and transport use their
// own phase vocabularies instead of before/after/error.
const (
	AgentCallBefore Name = AgentCall + ".before"
	AgentCallAfter  Name = AgentCall + ".after"
	AgentCallError  Name = AgentCall + ".error"

	LLMGenerateBefore Name = LLMGenerate + ".before"
	LLMGenerateAfter  Name = LLMGenerate + ".after"
	LLMGenerateError  Name = LLMGenerate + ".error"

	ToolCallBefore Name = ToolCall + ".before"
	ToolCallAfter  Name = ToolCall + ".after"
	ToolCallError  Name = ToolCall + ".error"

	WorkflowRunBefore Name = WorkflowRun + ".before"
	WorkflowRunAfter  Name = WorkflowRun + ".after"
	WorkflowRunError  Name = WorkflowRun + ".error"

	RPCRequestBefore Name = RPCRequest + ".before"
	RPCRequestAfter  Name = RPCRequest + ".after"
	RPCRequestError  Name = RPCRequest + ".error"

	ResourceFetchBefore Name = ResourceFetch + ".before"
	ResourceFetchAfter  Name = ResourceFetch + ".after"
	ResourceFetchError  Name = ResourceFetch + ".error"

	PromptApplyBefore Name = PromptApply + ".before"
	PromptApplyAfter  Name = PromptApply + ".after"
	PromptApplyError  Name = PromptApply + ".error"

	SessionStarted  Name = SessionLife + ".started"
	SessionPaused   Name = SessionLife + ".paused"
	SessionResumed  Name = SessionLife + ".resumed"
	SessionFinished Name = SessionLife + ".finished"

	ProgressUpdate    Name = ProgressFamily + ".update"
	ProgressCancelled Name = ProgressFamily + ".cancelled"

	TransportConnected    Name = Transport + ".connected"
	TransportDisconnected Name = Transport + ".disconnected"
	TransportReconnecting Name = Transport + ".reconnecting"
)

// Payload carries a hook emission's keyword arguments. Subscribers must
// treat Payload as a read-only view: they may read any key but must never
// mutate the map or any value reachable from it. This is a documented
// contract, not enforced at the type level, matching spec.md's own framing
// of the invariant.
type Payload map[string]any

// Common payload keys shared across hook families. Family-specific keys
// (agent, llm, tool-name, args, template-id, ...) are documented per family
// in spec.md §4.2 and are looked up by subscribers via plain map access
// since Go has no tagged-union kwargs equivalent at this layer.
const (
	KeyResult    = "result"
	KeyErr       = "exc"
	KeyContext   = "context"
	KeySessionID = "session-id"
)

// Subscriber reacts to emitted hook payloads. HandleEvent errors are logged
// and swallowed by the bus; they never halt emission to the remaining
// subscribers and never propagate into the emitting call path. This is a
// deliberate divergence from a bus that stops at the first subscriber
// error: the hook bus here is the boundary of the observation plane, and an
// observation-plane fault must never affect observed program behavior.
type Subscriber interface {
	HandleEvent(ctx context.Context, name Name, payload Payload) error
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, name Name, payload Payload) error

// HandleEvent implements Subscriber.
func (f SubscriberFunc) HandleEvent(ctx context.Context, name Name, payload Payload) error {
	return f(ctx, name, payload)
}

// Async wraps fn so the bus runs it on its own goroutine while still
// joining on completion (or ctx cancellation) before Emit proceeds to the
// next subscriber. This is the Go re-expression of an "asynchronous
// subscriber that is awaited sequentially": there is no coroutine runtime
// to suspend, so the join is a buffered channel receive instead.
func Async(fn SubscriberFunc) Subscriber {
	return asyncSubscriber{fn: fn}
}

type asyncSubscriber struct {
	fn SubscriberFunc
}

func (a asyncSubscriber) HandleEvent(ctx context.Context, name Name, payload Payload) error {
	done := make(chan error, 1)
	go func() {
		done <- a.fn(ctx, name, payload)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
