package store

import (
	"context"
	"log/slog"
	"sync"
)

// Listener observes entity lifecycle events for the types it supports.
// Implement any of BeforeSaveListener, CreatedListener, UpdatedListener,
// BeforeDeleteListener and DeletedListener to receive the matching event.
//
// Hooks run synchronously on the calling goroutine, in registration order.
// Inside a transaction they run before commit. An error from a hook aborts
// the operation and is returned wrapped in a *ListenerError.
type Listener interface {
	Supports(t Type) bool
}

// BeforeSaveListener runs before an entity is written by Save or changed
// by a field update. For updates it receives the document as it was.
type BeforeSaveListener interface {
	Listener
	BeforeSave(ctx context.Context, db string, e Entity) error
}

// CreatedListener runs after Save inserted a new document.
type CreatedListener interface {
	Listener
	Created(ctx context.Context, db string, e Entity) error
}

// UpdatedListener runs after Save replaced a document or a field update
// changed it.
type UpdatedListener interface {
	Listener
	Updated(ctx context.Context, db string, old, new Entity) error
}

// BeforeDeleteListener runs before each matched document is deleted.
type BeforeDeleteListener interface {
	Listener
	BeforeDelete(ctx context.Context, db string, e Entity) error
}

// DeletedListener runs after a document was deleted.
type DeletedListener interface {
	Listener
	Deleted(ctx context.Context, db string, e Entity) error
}

// AddListener registers l for every type it supports.
//
// The listeners of a type are resolved the first time an operation on
// that type runs, and cached for the lifetime of the store. A listener
// added afterwards is NOT applied to types already resolved; register
// listeners before use, or pass them to New with WithListeners.
func (s *Store) AddListener(l Listener) {
	if l == nil {
		return
	}
	s.listeners.add(l)
}

// listenerRegistry holds the registered listeners and, per type, the
// subset supporting it.
type listenerRegistry struct {
	mu  sync.Mutex
	all []Listener

	byType sync.Map // Type -> []Listener
	log    *slog.Logger
}

func (r *listenerRegistry) add(l Listener) {
	r.mu.Lock()
	r.all = append(r.all, l)
	r.mu.Unlock()

	r.byType.Range(func(k, _ any) bool {
		if t := k.(Type); l.Supports(t) {
			r.log.Debug("listener not applied to already resolved type", "type", t.String())
		}
		return true
	})
}

// forType returns the listeners supporting t, computing them once.
func (r *listenerRegistry) forType(t Type) []Listener {
	if ls, ok := r.byType.Load(t); ok {
		return ls.([]Listener)
	}

	r.mu.Lock()
	var ls []Listener
	for _, l := range r.all {
		if l.Supports(t) {
			ls = append(ls, l)
		}
	}
	r.mu.Unlock()

	actual, loaded := r.byType.LoadOrStore(t, ls)
	if !loaded {
		r.log.Debug("resolved listeners", "type", t.String(), "count", len(ls))
	}
	return actual.([]Listener)
}

func (r *listenerRegistry) reset() {
	r.byType.Range(func(k, _ any) bool {
		r.byType.Delete(k)
		return true
	})
}

func (sc scope) beforeSave(ctx context.Context, t Type, e Entity) error {
	for _, l := range sc.store.listeners.forType(t) {
		if h, ok := l.(BeforeSaveListener); ok {
			if err := h.BeforeSave(ctx, sc.db, e); err != nil {
				return &ListenerError{Hook: "BeforeSave", Type: t, Err: err}
			}
		}
	}
	return nil
}

func (sc scope) created(ctx context.Context, t Type, e Entity) error {
	for _, l := range sc.store.listeners.forType(t) {
		if h, ok := l.(CreatedListener); ok {
			if err := h.Created(ctx, sc.db, e); err != nil {
				return &ListenerError{Hook: "Created", Type: t, Err: err}
			}
		}
	}
	return nil
}

func (sc scope) updated(ctx context.Context, t Type, old, new Entity) error {
	for _, l := range sc.store.listeners.forType(t) {
		if h, ok := l.(UpdatedListener); ok {
			if err := h.Updated(ctx, sc.db, old, new); err != nil {
				return &ListenerError{Hook: "Updated", Type: t, Err: err}
			}
		}
	}
	return nil
}

func (sc scope) beforeDelete(ctx context.Context, t Type, e Entity) error {
	for _, l := range sc.store.listeners.forType(t) {
		if h, ok := l.(BeforeDeleteListener); ok {
			if err := h.BeforeDelete(ctx, sc.db, e); err != nil {
				return &ListenerError{Hook: "BeforeDelete", Type: t, Err: err}
			}
		}
	}
	return nil
}

func (sc scope) deleted(ctx context.Context, t Type, e Entity) error {
	for _, l := range sc.store.listeners.forType(t) {
		if h, ok := l.(DeletedListener); ok {
			if err := h.Deleted(ctx, sc.db, e); err != nil {
				return &ListenerError{Hook: "Deleted", Type: t, Err: err}
			}
		}
	}
	return nil
}
