// Package rtctx threads a session identifier through concurrent workflow
// execution without parameter plumbing. It models the task-local session-id
// slot described for the observation plane: a workflow root calls Set once,
// descendants retrieve it with Get, and work spawned from a task inherits a
// snapshot of the value visible at spawn time.
//
// Go has no task-local storage distinct from context.Context, so the slot is
// carried as a context value. This is the idiomatic re-expression called for
// when a task-local primitive from another runtime has no equivalent here:
// the contract (set-once-per-root, inherited by spawned work, independent
// per concurrent task) is preserved even though the carrier changes.
package rtctx

import "context"

// Unknown is returned by Get when no session-id is visible from ctx.
const Unknown = "unknown"

type sessionIDKey struct{}

// Set returns a copy of ctx carrying id as the active session-id. Callers
// should invoke Set exactly once per workflow root or inbound-request
// middleware; replacing an id already visible in the same task scope is
// unsupported and callers must not rely on any particular outcome if they
// do so.
func Set(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// Get returns the session-id visible from ctx, or Unknown if none has been
// set on ctx or any of its ancestors. Get never panics and never blocks.
func Get(ctx context.Context) string {
	if ctx == nil {
		return Unknown
	}
	id, _ := ctx.Value(sessionIDKey{}).(string)
	if id == "" {
		return Unknown
	}
	return id
}

// Bound snapshots the session-id visible from ctx and returns a function
// that, when called, installs that snapshot onto a fresh context derived
// from base before invoking fn. Use Bound when spawning a goroutine or
// scheduling async work so the child task observes the parent's session-id
// even though the parent's ctx may be canceled or rebound before the child
// runs.
//
// This is the Go re-expression of a decorator that injects the current
// session-id as a named argument: Go functions take an explicit
// context.Context by convention rather than named keyword arguments, so the
// injection point is the context passed to fn, not a reflected parameter
// list.
func Bound(ctx context.Context, fn func(context.Context)) func(base context.Context) {
	id := Get(ctx)
	return func(base context.Context) {
		fn(Set(base, id))
	}
}
