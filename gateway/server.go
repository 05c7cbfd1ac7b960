// Package gateway implements C7: the local HTTP surface exposing session
// listing, ranged trace streaming, the SSE event stream, and signal/cancel
// dispatch. Grounded on vanducng-goclaw's internal/gateway/server.go for the
// overall Server shape (BuildMux/Start/graceful-shutdown-via-context,
// health handler, http.ServeMux routing) and its adjacent rate limiter
// pattern, adapted from a WebSocket+chat gateway to this sidecar's
// read-mostly debugging API.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcp-agent-inspector/inspector/eventbus"
	"github.com/mcp-agent-inspector/inspector/session"
	"github.com/mcp-agent-inspector/inspector/telemetry"
	"github.com/mcp-agent-inspector/inspector/tracestream"
)

// DefaultBasePath and DefaultAddr match spec.md §6's external interface.
const (
	DefaultBasePath = "/_inspector"
	DefaultAddr     = "127.0.0.1:7800"
	serverName      = "mcp-agent-inspector"
	serverVersion   = "0.0.1"
)

// sessionIDPattern is spec.md §6's exact path-parameter pattern.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

// SignalDispatcher delivers signal/cancel requests to whatever engine backs
// a session (e.g. session/temporalquery.Dispatcher). Nil means /signal and
// /cancel always 404, which is correct for local-engine-only deployments.
type SignalDispatcher interface {
	Signal(ctx context.Context, sessionID, signal string, payload any) error
	Cancel(ctx context.Context, sessionID string) error
}

// SignalValidator validates a /signal payload against a session's optional
// JSON Schema (stashed on SessionMeta by a paused workflow). Nil disables
// validation.
type SignalValidator interface {
	Validate(ctx context.Context, sessionID string, payload any) error
}

// Config wires a Gateway's dependencies.
type Config struct {
	Registry   *session.Registry
	Bus        *eventbus.Bus
	Traces     *tracestream.Service
	Dispatcher SignalDispatcher
	Validator  SignalValidator
	Logger     telemetry.Logger
	BasePath   string
	// SignalRPS and EventsRPS bound POST /signal, /cancel, and SSE accept
	// rate respectively; <= 0 disables limiting for that group.
	SignalRPS float64
	EventsRPS float64
}

// Gateway serves spec.md §6's HTTP API.
type Gateway struct {
	cfg        Config
	basePath   string
	logger     telemetry.Logger
	signalLim  *rate.Limiter
	eventsLim  *rate.Limiter
	httpServer *http.Server
	mux        *http.ServeMux
}

// New constructs a Gateway from cfg.
func New(cfg Config) *Gateway {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	g := &Gateway{cfg: cfg, basePath: basePath, logger: logger}
	if cfg.SignalRPS > 0 {
		g.signalLim = rate.NewLimiter(rate.Limit(cfg.SignalRPS), int(cfg.SignalRPS)+1)
	}
	if cfg.EventsRPS > 0 {
		g.eventsLim = rate.NewLimiter(rate.Limit(cfg.EventsRPS), int(cfg.EventsRPS)+1)
	}
	return g
}

// Mount registers every /_inspector route on mux, for embedding inside a
// host program's own HTTP server.
func (g *Gateway) Mount(mux *http.ServeMux) {
	prefix := g.basePath
	mux.HandleFunc(prefix+"/health", g.handleHealth)
	mux.HandleFunc(prefix+"/sessions", g.handleSessions)
	mux.HandleFunc(prefix+"/trace/", g.withPathSessionID(prefix+"/trace/", g.handleTrace))
	mux.HandleFunc(prefix+"/events", g.handleEvents)
	mux.HandleFunc(prefix+"/signal/", g.withPathSessionID(prefix+"/signal/", g.handleSignal))
	mux.HandleFunc(prefix+"/cancel/", g.withPathSessionID(prefix+"/cancel/", g.handleCancel))
}

// Start runs the gateway as a standalone HTTP server bound to addr
// (DefaultAddr if empty) until ctx is done, then shuts down gracefully.
// Grounded on the teacher's Start(ctx): a goroutine waiting on ctx.Done()
// to call Shutdown, ListenAndServe treated as success on http.ErrServerClosed.
func (g *Gateway) Start(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	mux := http.NewServeMux()
	g.Mount(mux)
	g.mux = mux

	g.httpServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = g.httpServer.Shutdown(shutdownCtx)
	}()

	if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}{Name: serverName, Version: serverVersion})
}

// withPathSessionID extracts the {session_id} path parameter after prefix,
// validates it against sessionIDPattern, and calls next with it — an
// invalid id or a traversal attempt both 404 rather than 400, so a prober
// cannot distinguish "bad syntax" from "valid syntax, wrong resource".
func (g *Gateway) withPathSessionID(prefix string, next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len(prefix):]
		if !sessionIDPattern.MatchString(id) {
			writeError(w, http.StatusNotFound, kindNotFound, "unknown session")
			return
		}
		next(w, r, id)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
