// Package session implements the session registry (C5): it produces a
// unified, sorted list of sessions by merging gzipped trace files on disk
// with a live in-memory registry of running work, and optionally an
// external durable-workflow service query.
package session

import (
	"context"
	"errors"
	"time"
)

// Status is a session's coarse lifecycle state, per spec.md §3.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// Engine classifies a session's execution environment, per spec.md §3.
type Engine string

const (
	EngineLocal            Engine = "local"
	EngineExternalWorkflow Engine = "external-workflow"
	EngineInboundRequest   Engine = "inbound-request"
)

// Meta is the SessionMeta shape of spec.md §6, plus the additive Phase
// field documented as a supplemented feature in SPEC_FULL.md.
type Meta struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Engine    Engine     `json:"engine"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Title     string     `json:"title"`
	Tags      []string   `json:"tags,omitempty"`
	// Phase is a finer-grained, run.Phase-shaped hint available only for
	// sessions sourced from the live registry. Empty for sessions
	// reconstructed purely from trace files or an external query.
	Phase string `json:"phase,omitempty"`
}

// DurationMS is the derived span-count-adjacent duration field spec.md's
// data model calls for. It returns 0 while the session has not ended.
func (m Meta) DurationMS() int64 {
	if m.EndedAt == nil {
		return 0
	}
	return m.EndedAt.Sub(m.StartedAt).Milliseconds()
}

// ErrNotFound indicates no session exists for a given identifier in the
// live registry.
var ErrNotFound = errors.New("session not found")

// Store is the live in-memory registry of sessions that have not yet (or
// may never) flush spans to a trace file. The registry (Registry.List)
// gives Store entries precedence over trace-file-derived metadata for the
// sessions both sources know about, since the live store reflects status
// changes immediately while a trace file only does so once a span is
// flushed.
type Store interface {
	Create(ctx context.Context, id string, engine Engine, title string, startedAt time.Time) (Meta, error)
	Update(ctx context.Context, id string, mutate func(*Meta)) (Meta, error)
	Load(ctx context.Context, id string) (Meta, error)
	List(ctx context.Context) ([]Meta, error)
}
