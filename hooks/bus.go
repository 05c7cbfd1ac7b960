package hooks

import (
	"context"
	"sync"
)

type (
	// Bus fans named hook emissions out to registered subscribers. The bus
	// is thread-safe: Register, Unregister, and Emit may be called
	// concurrently from arbitrary goroutines.
	Bus interface {
		// Register appends sub to the subscriber list for name and returns a
		// Registration that can be closed to remove it. Duplicate
		// registrations of logically-equivalent subscribers are permitted
		// and produce duplicate invocations, matching spec.md's "duplicate
		// registrations are allowed" rule.
		Register(name Name, sub Subscriber) Registration

		// Emit invokes every subscriber registered for name, in
		// registration order, awaiting each (synchronous subscribers
		// inline, Async-wrapped ones via their internal join) before
		// moving to the next. A subscriber error is logged through the
		// bus's error hook, if any, and does not stop emission. Emitting a
		// name with zero registered subscribers is a fast no-op: Emit
		// takes a read lock, observes an empty or absent slice, and
		// returns without touching payload.
		Emit(ctx context.Context, name Name, payload Payload)
	}

	// Registration represents one active (name, subscriber) pair. Close is
	// idempotent and safe to call from any goroutine, including from
	// within a subscriber's own HandleEvent.
	Registration interface {
		Close()
	}

	// OnSubscriberError is invoked once per swallowed subscriber error.
	// Passing nil (the default via NewBus) silently drops errors; callers
	// that want WARN-level logging supply a closure over their own
	// telemetry.Logger. Taking a plain function here, instead of an
	// interface from package telemetry, keeps package hooks free of any
	// dependency on the telemetry package.
	OnSubscriberError func(name Name, err error)
)

// NewBus constructs an empty, ready-to-use hook bus. onErr may be nil.
func NewBus(onErr OnSubscriberError) Bus {
	return &bus{
		subs:  make(map[Name][]*registration),
		onErr: onErr,
	}
}

type registration struct {
	name   Name
	sub    Subscriber
	active bool
	bus    *bus
	once   sync.Once
}

func (r *registration) Close() {
	r.once.Do(func() {
		r.bus.remove(r)
	})
}

type bus struct {
	mu    sync.RWMutex
	subs  map[Name][]*registration
	onErr OnSubscriberError
}

func (b *bus) Register(name Name, sub Subscriber) Registration {
	r := &registration{name: name, sub: sub, active: true}
	b.mu.Lock()
	r.bus = b
	b.subs[name] = append(b.subs[name], r)
	b.mu.Unlock()
	return r
}

func (b *bus) remove(r *registration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[r.name]
	for i, cur := range list {
		if cur == r {
			// Preserve registration order for the remaining subscribers.
			b.subs[r.name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
}

func (b *bus) Emit(ctx context.Context, name Name, payload Payload) {
	b.mu.RLock()
	list := b.subs[name]
	if len(list) == 0 {
		b.mu.RUnlock()
		return
	}
	snapshot := make([]*registration, len(list))
	copy(snapshot, list)
	b.mu.RUnlock()

	for _, r := range snapshot {
		if err := r.sub.HandleEvent(ctx, name, payload); err != nil && b.onErr != nil {
			b.onErr(name, err)
		}
	}
}
