package session

import (
	"context"
	"sort"
	"time"
)

// Querier queries an external durable-workflow service (e.g. Temporal) for
// additional engine=external-workflow sessions. Implementations must
// respect ctx's deadline; Registry.List applies a short timeout around
// every call.
type Querier interface {
	Query(ctx context.Context) ([]Meta, error)
}

// ListResult is the result of Registry.List: the merged, sorted session
// list plus an optional warning surfaced as spec.md §6's sibling
// `temporal_error` field when the external query degrades.
type ListResult struct {
	Sessions []Meta
	Warning  string
}

// Registry implements C5: it merges trace-file-derived sessions, the live
// in-memory registry, and (optionally) an external workflow service query
// into one sorted list.
type Registry struct {
	Scanner      *FileScanner
	Live         Store
	Querier      Querier
	QueryTimeout time.Duration
}

// List implements the C5 `list()` operation. A failing or timing-out
// Querier never drops local sessions: List always succeeds when the local
// sources succeed, returning a non-empty Warning instead of an error.
func (r *Registry) List(ctx context.Context) (ListResult, error) {
	var fileSessions []Meta
	if r.Scanner != nil {
		var err error
		fileSessions, err = r.Scanner.Scan(ctx)
		if err != nil {
			return ListResult{}, err
		}
	}

	var liveSessions []Meta
	if r.Live != nil {
		var err error
		liveSessions, err = r.Live.List(ctx)
		if err != nil {
			return ListResult{}, err
		}
	}

	merged := mergeByID(fileSessions, liveSessions)

	var warning string
	if r.Querier != nil {
		timeout := r.QueryTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		qctx, cancel := context.WithTimeout(ctx, timeout)
		extra, err := r.Querier.Query(qctx)
		cancel()
		if err != nil {
			warning = err.Error()
		} else {
			merged = mergeByID(merged, extra)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartedAt.After(merged[j].StartedAt)
	})

	return ListResult{Sessions: merged, Warning: warning}, nil
}

// mergeByID merges base with overlay, overlay entries taking precedence for
// any session-id present in both — this is how the live registry's status
// wins over a not-yet-flushed trace file, and how an external query's
// durable-engine sessions add to, rather than replace, local ones.
func mergeByID(base, overlay []Meta) []Meta {
	byID := make(map[string]Meta, len(base)+len(overlay))
	order := make([]string, 0, len(base)+len(overlay))
	for _, m := range base {
		if _, ok := byID[m.ID]; !ok {
			order = append(order, m.ID)
		}
		byID[m.ID] = m
	}
	for _, m := range overlay {
		if _, ok := byID[m.ID]; !ok {
			order = append(order, m.ID)
		}
		byID[m.ID] = m
	}
	out := make([]Meta, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}
