// Package pulsemirror optionally mirrors eventbus.Event values onto a
// goa.design/pulse stream backed by Redis, so a second inspector process
// (or a long-lived analytics consumer) can observe the event stream beyond
// the in-process ring buffer's retention. Grounded on the teacher's
// features/stream/pulse/sink.go (Envelope-wrapped JSON publish via a thin
// Client interface) and its clients/pulse/client.go (Redis-backed
// streaming.NewStream wrapper); adapted from goa-ai's per-run stream.Event
// to this package's session-scoped eventbus.Event.
package pulsemirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/mcp-agent-inspector/inspector/eventbus"
)

// Client exposes the subset of Pulse needed to mirror events, narrowed from
// the teacher's pulse.Client to a single Stream accessor plus Close.
type Client interface {
	Stream(name string) (Stream, error)
	Close(ctx context.Context) error
}

// Stream publishes entries to one Pulse stream.
type Stream interface {
	Add(ctx context.Context, event string, payload []byte) (string, error)
}

// Envelope is the JSON document written to the Pulse stream per event.
type Envelope struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	SessionID string    `json:"session_id,omitempty"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

// Mirror subscribes to a Bus and republishes every event to Pulse. Publish
// failures are swallowed (logged by the caller via OnError) rather than
// propagated, since the in-process bus remains the system of record and a
// Redis outage must not back-pressure live SSE subscribers.
type Mirror struct {
	client   Client
	streamFn func(eventbus.Event) (string, error)
	OnError  func(eventbus.Event, error)
}

// Options configures a Mirror.
type Options struct {
	Client Client
	// StreamName derives the Pulse stream name from an event. Defaults to
	// "inspector/events" for unscoped events or "inspector/session/<id>"
	// when SessionID is set.
	StreamName func(eventbus.Event) (string, error)
	OnError    func(eventbus.Event, error)
}

// New constructs a Mirror.
func New(opts Options) (*Mirror, error) {
	if opts.Client == nil {
		return nil, errors.New("pulsemirror: client is required")
	}
	streamFn := opts.StreamName
	if streamFn == nil {
		streamFn = defaultStreamName
	}
	return &Mirror{client: opts.Client, streamFn: streamFn, OnError: opts.OnError}, nil
}

// Run drains bus's events (via a fresh Subscribe with no replay — the
// mirror only cares about events from the moment it starts) until ctx is
// done.
func (m *Mirror) Run(ctx context.Context, bus *eventbus.Bus) {
	sub := bus.Subscribe(ctx, 0)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			m.publish(ctx, ev)
		}
	}
}

func (m *Mirror) publish(ctx context.Context, ev eventbus.Event) {
	name, err := m.streamFn(ev)
	if err != nil {
		m.reportError(ev, err)
		return
	}
	stream, err := m.client.Stream(name)
	if err != nil {
		m.reportError(ev, err)
		return
	}
	payload, err := json.Marshal(Envelope{ID: ev.ID, Name: ev.Name, SessionID: ev.SessionID, Time: ev.Time, Data: ev.Data})
	if err != nil {
		m.reportError(ev, err)
		return
	}
	if _, err := stream.Add(ctx, ev.Name, payload); err != nil {
		m.reportError(ev, err)
	}
}

func (m *Mirror) reportError(ev eventbus.Event, err error) {
	if m.OnError != nil {
		m.OnError(ev, err)
	}
}

func defaultStreamName(ev eventbus.Event) (string, error) {
	if ev.SessionID == "" {
		return "inspector/events", nil
	}
	return fmt.Sprintf("inspector/session/%s", ev.SessionID), nil
}

// redisClient adapts a *redis.Client plus stream options into the Client
// interface, mirroring the teacher's clients/pulse/client.go layering.
type redisClient struct {
	redis *redis.Client
}

// NewRedisClient builds a Client backed by a live Redis connection.
func NewRedisClient(rc *redis.Client) Client {
	return &redisClient{redis: rc}
}

func (c *redisClient) Stream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("pulsemirror: stream name is required")
	}
	str, err := streaming.NewStream(name, c.redis, streamopts.WithStreamMaxLen(DefaultMaxLen))
	if err != nil {
		return nil, fmt.Errorf("pulsemirror: create stream: %w", err)
	}
	return &redisStream{stream: str}, nil
}

func (c *redisClient) Close(ctx context.Context) error {
	return nil
}

// DefaultMaxLen bounds each Pulse stream to the same order of magnitude as
// the in-process ring buffer.
const DefaultMaxLen = eventbus.DefaultRingCapacity

type redisStream struct {
	stream *streaming.Stream
}

func (s *redisStream) Add(ctx context.Context, event string, payload []byte) (string, error) {
	return s.stream.Add(ctx, event, payload)
}
