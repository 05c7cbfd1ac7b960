package session

import (
	"context"
	"time"

	"github.com/mcp-agent-inspector/inspector/hooks"
	"github.com/mcp-agent-inspector/inspector/rtctx"
	"github.com/mcp-agent-inspector/inspector/telemetry"
)

// Notify is invoked once per lifecycle hook observed, after the live store
// has been updated. inspector.New wires this to the event bus (C6) so SSE
// subscribers see the same lifecycle transitions the registry now reflects.
// kind is one of "started", "paused", "resumed", "finished".
type Notify func(kind string, meta Meta, extra map[string]any)

// LifecycleSubscriber reacts to the session-lifecycle hook family,
// maintaining Store and stamping session metadata onto the currently active
// span so a trace file's first/last line carries it — this is how C5's
// file-based metadata extraction ("extract metadata from the first line:
// start-time, engine, title, tags; ... the last line: end-time, final
// status") gets data to read, since spans otherwise carry no intrinsic
// knowledge of session-level fields.
type LifecycleSubscriber struct {
	Store  Store
	Tracer telemetry.Tracer
	Notify Notify
}

// HandleEvent implements hooks.Subscriber.
func (l LifecycleSubscriber) HandleEvent(ctx context.Context, name hooks.Name, payload hooks.Payload) error {
	switch name {
	case hooks.SessionStarted:
		return l.started(ctx, payload)
	case hooks.SessionPaused:
		return l.transition(ctx, payload, StatusPaused, "paused")
	case hooks.SessionResumed:
		return l.transition(ctx, payload, StatusRunning, "resumed")
	case hooks.SessionFinished:
		return l.finished(ctx, payload)
	}
	return nil
}

func (l LifecycleSubscriber) started(ctx context.Context, payload hooks.Payload) error {
	id := stringField(payload, "session-id", rtctx.Get(ctx))
	engine := Engine(stringField(payload, "engine", string(EngineLocal)))
	title := stringField(payload, "title", "")

	meta, err := l.Store.Create(ctx, id, engine, title, time.Now())
	if err != nil {
		return err
	}
	l.stampSpan(ctx, meta)
	l.emit("started", meta, payload)
	return nil
}

func (l LifecycleSubscriber) transition(ctx context.Context, payload hooks.Payload, status Status, kind string) error {
	id := stringField(payload, "session-id", rtctx.Get(ctx))
	meta, err := l.Store.Update(ctx, id, func(m *Meta) { m.Status = status })
	if err != nil {
		return err
	}
	l.stampSpan(ctx, meta)
	l.emit(kind, meta, payload)
	return nil
}

func (l LifecycleSubscriber) finished(ctx context.Context, payload hooks.Payload) error {
	id := stringField(payload, "session-id", rtctx.Get(ctx))
	status := Status(stringField(payload, "status", string(StatusCompleted)))
	now := time.Now().UTC()
	meta, err := l.Store.Update(ctx, id, func(m *Meta) {
		m.Status = status
		m.EndedAt = &now
	})
	if err != nil {
		return err
	}
	l.stampSpan(ctx, meta)
	l.emit("finished", meta, payload)
	return nil
}

func (l LifecycleSubscriber) stampSpan(ctx context.Context, meta Meta) {
	span := l.Tracer.Span(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttribute("session.id", meta.ID)
	span.SetAttribute("session.engine", string(meta.Engine))
	span.SetAttribute("session.status", string(meta.Status))
	if meta.Title != "" {
		span.SetAttribute("session.title", meta.Title)
	}
	if meta.EndedAt != nil {
		span.SetAttribute("session.ended_at", meta.EndedAt.Format(time.RFC3339))
	}
}

func (l LifecycleSubscriber) emit(kind string, meta Meta, payload hooks.Payload) {
	if l.Notify == nil {
		return
	}
	extra := make(map[string]any, len(payload))
	for k, v := range payload {
		extra[k] = v
	}
	l.Notify(kind, meta, extra)
}

func stringField(payload hooks.Payload, key, fallback string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
