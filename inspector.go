// Package inspector wires C1 through C8 into one embeddable sidecar. A host
// agent-framework process constructs a *Server with New, threads rtctx
// through its goroutines, calls Server.Bus.Emit at its instrumentation
// points, and either mounts Server.Gateway onto its own *http.ServeMux or
// calls Server.Start to run the gateway standalone.
package inspector

import (
	"context"
	"fmt"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mcp-agent-inspector/inspector/config"
	"github.com/mcp-agent-inspector/inspector/eventbus"
	"github.com/mcp-agent-inspector/inspector/export"
	"github.com/mcp-agent-inspector/inspector/gateway"
	"github.com/mcp-agent-inspector/inspector/hooks"
	"github.com/mcp-agent-inspector/inspector/session"
	"github.com/mcp-agent-inspector/inspector/session/inmem"
	"github.com/mcp-agent-inspector/inspector/telemetry"
	"github.com/mcp-agent-inspector/inspector/tracestream"
)

// Server is the embeddable sidecar: the hook bus agent-framework code emits
// to, plus everything downstream of it (enrichment, export, session
// tracking, event fan-out, HTTP gateway).
type Server struct {
	Config *config.Config

	Bus    hooks.Bus
	Tracer telemetry.Tracer
	Logger telemetry.Logger

	provider *sdktrace.TracerProvider
	Exporter *export.Exporter

	SessionStore session.Store
	Registry     *session.Registry
	EventBus     *eventbus.Bus
	Gateway      *gateway.Gateway
}

// Option customizes New.
type Option func(*settings)

type settings struct {
	logger     telemetry.Logger
	dispatcher gateway.SignalDispatcher
	querier    session.Querier
	validator  gateway.SignalValidator
}

// WithLogger overrides the ambient logger (default: ClueLogger).
func WithLogger(l telemetry.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithSignalDispatcher wires a /signal and /cancel backend, e.g. a
// session/temporalquery.Dispatcher.
func WithSignalDispatcher(d gateway.SignalDispatcher) Option {
	return func(s *settings) { s.dispatcher = d }
}

// WithExternalQuerier wires an additional session source for /sessions,
// e.g. a session/temporalquery.Querier.
func WithExternalQuerier(q session.Querier) Option {
	return func(s *settings) { s.querier = q }
}

// WithSignalValidator wires JSON-Schema validation of /signal payloads.
func WithSignalValidator(v gateway.SignalValidator) Option {
	return func(s *settings) { s.validator = v }
}

// New constructs a fully-wired Server from cfg (config.Default() if nil).
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	st := &settings{logger: telemetry.NewClueLogger()}
	for _, opt := range opts {
		opt(st)
	}

	if err := os.MkdirAll(cfg.TracesDir, 0o755); err != nil {
		return nil, fmt.Errorf("inspector: create traces dir: %w", err)
	}

	bus := eventbus.New(cfg.RingCapacity, cfg.SubscriberQueue)

	exp, err := export.New(export.Config{
		TracesDir:   cfg.TracesDir,
		MaxWriters:  cfg.MaxWriters,
		RotateBytes: cfg.RotateBytes,
		Logger:      st.logger,
		OnNotice: func(kind export.NoticeKind, detail string) {
			bus.Publish(string(kind), "", map[string]any{"detail": detail})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("inspector: create exporter: %w", err)
	}

	provider := telemetry.NewProvider(exp)
	tracer := telemetry.NewTracer(provider.Tracer("github.com/mcp-agent-inspector/inspector"))

	store := inmem.New()
	hookBus := hooks.NewBus(func(name hooks.Name, err error) {
		st.logger.Warn(context.Background(), "hook subscriber error", "hook", string(name), "err", err.Error())
	})

	lifecycle := session.LifecycleSubscriber{
		Store:  store,
		Tracer: tracer,
		Notify: func(kind string, meta session.Meta, extra map[string]any) {
			bus.Publish("session."+kind, meta.ID, struct {
				Meta  session.Meta   `json:"meta"`
				Extra map[string]any `json:"extra,omitempty"`
			}{Meta: meta, Extra: extra})
		},
	}
	for _, name := range []hooks.Name{hooks.SessionStarted, hooks.SessionPaused, hooks.SessionResumed, hooks.SessionFinished} {
		hookBus.Register(name, lifecycle)
	}

	enrichment := telemetry.EnrichmentSubscriber{Tracer: tracer}
	for _, name := range allEnrichedHooks {
		hookBus.Register(name, enrichment)
	}

	registry := &session.Registry{
		Scanner: session.NewFileScanner(cfg.TracesDir, st.logger),
		Live:    store,
		Querier: st.querier,
	}

	gw := gateway.New(gateway.Config{
		Registry:   registry,
		Bus:        bus,
		Traces:     tracestream.New(cfg.TracesDir),
		Dispatcher: st.dispatcher,
		Validator:  st.validator,
		Logger:     st.logger,
	})

	return &Server{
		Config:       cfg,
		Bus:          hookBus,
		Tracer:       tracer,
		Logger:       st.logger,
		provider:     provider,
		Exporter:     exp,
		SessionStore: store,
		Registry:     registry,
		EventBus:     bus,
		Gateway:      gw,
	}, nil
}

// allEnrichedHooks lists every hook family telemetry.EnrichmentSubscriber
// understands how to namespace. Session-lifecycle hooks are handled by
// session.LifecycleSubscriber instead; progress hooks get no subscriber
// from New.
var allEnrichedHooks = []hooks.Name{
	hooks.AgentCallBefore, hooks.AgentCallAfter, hooks.AgentCallError,
	hooks.LLMGenerateBefore, hooks.LLMGenerateAfter, hooks.LLMGenerateError,
	hooks.ToolCallBefore, hooks.ToolCallAfter, hooks.ToolCallError,
	hooks.WorkflowRunBefore, hooks.WorkflowRunAfter, hooks.WorkflowRunError,
	hooks.RPCRequestBefore, hooks.RPCRequestAfter, hooks.RPCRequestError,
	hooks.ResourceFetchBefore, hooks.ResourceFetchAfter, hooks.ResourceFetchError,
	hooks.PromptApplyBefore, hooks.PromptApplyAfter, hooks.PromptApplyError,
	hooks.TransportConnected, hooks.TransportDisconnected, hooks.TransportReconnecting,
}

// Start runs the gateway standalone, blocking until ctx is done. Use
// Gateway.Mount instead when embedding into a host program's own HTTP server.
func (s *Server) Start(ctx context.Context) error {
	return s.Gateway.Start(ctx, s.Config.Addr())
}

// Shutdown flushes the exporter and releases its resources. Call after
// Start's context is cancelled and the gateway has stopped accepting
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.provider.Shutdown(ctx); err != nil {
		return err
	}
	return s.Exporter.Shutdown(ctx)
}
