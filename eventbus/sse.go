package eventbus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mcp-agent-inspector/inspector/telemetry"
)

// DefaultHeartbeatInterval matches spec.md's 15-second keepalive comment
// line, shorter than the teacher's 30s because trace sessions can sit idle
// for long stretches and intermediary proxies tend to time out sooner.
const DefaultHeartbeatInterval = 15 * time.Second

// DefaultRetryMillis is advertised to the client as the initial `retry:`
// field so a dropped connection reconnects quickly.
const DefaultRetryMillis = 2000

// ServeHTTPOptions configures ServeSSE.
type ServeHTTPOptions struct {
	Heartbeat time.Duration
	Logger    telemetry.Logger
}

// ServeSSE writes Server-Sent Events framing for sub's events onto w until
// the request context is done or the subscription is dropped, honoring a
// `Last-Event-ID` request header for replay. Grounded on the teacher
// example's ServeHTTP (flusher check, SSE headers, heartbeat ticker,
// select-on-context/events/heartbeat loop), with every frame carrying the
// literal `event: message` line, the bus's event Name inside the JSON data,
// and an `id:` line per event so clients can resume via Last-Event-ID.
func (b *Bus) ServeSSE(w http.ResponseWriter, r *http.Request, opts ServeHTTPOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: %d\n\n", DefaultRetryMillis)
	flusher.Flush()

	lastEventID := parseLastEventID(r)
	sub := b.Subscribe(r.Context(), lastEventID)
	defer sub.Close()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				// Subscription dropped (buffer overflow); one last comment
				// tells the client to reconnect and replay from lastEventID.
				fmt.Fprint(w, ": subscriber overflow, reconnect\n\n")
				flusher.Flush()
				return
			}
			if err := writeEvent(w, ev); err != nil {
				logger.Warn(ctx, "sse write failed", "err", err.Error())
				return
			}
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// wireEvent is the JSON shape written into the SSE `data:` field. The event
// bus's own Name never appears on the `event:` line — spec.md §4.6 pins
// that to the literal "message" for every event, so EventSource's default
// onmessage handler fires for all of them — callers that need to
// distinguish kinds read Name from the decoded payload instead.
type wireEvent struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	SessionID string    `json:"session_id,omitempty"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data"`
}

func writeEvent(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(wireEvent{ID: ev.ID, Name: ev.Name, SessionID: ev.SessionID, Time: ev.Time, Data: ev.Data})
	if err != nil {
		data = []byte(`"` + err.Error() + `"`)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", ev.ID, data)
	return err
}

func parseLastEventID(r *http.Request) uint64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
