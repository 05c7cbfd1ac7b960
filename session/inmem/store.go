// Package inmem provides an in-memory implementation of session.Store,
// grounded on goa-ai's runtime/agent/session/inmem store: a mutex-guarded
// map with defensive copies on every read so callers can never observe or
// corrupt another goroutine's view of a Meta.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/mcp-agent-inspector/inspector/session"
)

// Store is a concurrency-safe, in-memory session.Store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]session.Meta
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]session.Meta)}
}

func (s *Store) Create(_ context.Context, id string, engine session.Engine, title string, startedAt time.Time) (session.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return clone(existing), nil
	}
	m := session.Meta{
		ID:        id,
		Status:    session.StatusRunning,
		Engine:    engine,
		Title:     title,
		StartedAt: startedAt.UTC(),
	}
	s.sessions[id] = m
	return clone(m), nil
}

func (s *Store) Update(_ context.Context, id string, mutate func(*session.Meta)) (session.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[id]
	if !ok {
		return session.Meta{}, session.ErrNotFound
	}
	mutate(&m)
	s.sessions[id] = m
	return clone(m), nil
}

func (s *Store) Load(_ context.Context, id string) (session.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.sessions[id]
	if !ok {
		return session.Meta{}, session.ErrNotFound
	}
	return clone(m), nil
}

func (s *Store) List(_ context.Context) ([]session.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]session.Meta, 0, len(s.sessions))
	for _, m := range s.sessions {
		out = append(out, clone(m))
	}
	return out, nil
}

func clone(m session.Meta) session.Meta {
	out := m
	if m.EndedAt != nil {
		at := *m.EndedAt
		out.EndedAt = &at
	}
	if len(m.Tags) > 0 {
		out.Tags = append([]string(nil), m.Tags...)
	}
	return out
}
