package testutil

import (
	"context"
	"sync"

	"github.com/roach88/dbstore/store"
)

// Event is one listener notification captured by Recorder.
type Event struct {
	Hook string
	DB   string
	Type store.Type

	// Entity is the subject; for "Updated" it is the new entity and Old
	// the previous one.
	Entity store.Entity
	Old    store.Entity
}

// Recorder is a store listener that records every notification.
//
// It supports the types in Types, or every type when Types is empty. Fail
// maps a hook name ("BeforeSave", "Created", ...) to the error that hook
// returns, to exercise listener failures.
//
// Thread-safety: Recorder is safe for concurrent use via internal mutex.
type Recorder struct {
	Types []store.Type
	Fail  map[string]error

	mu     sync.Mutex
	events []Event
}

var (
	_ store.BeforeSaveListener   = (*Recorder)(nil)
	_ store.CreatedListener      = (*Recorder)(nil)
	_ store.UpdatedListener      = (*Recorder)(nil)
	_ store.BeforeDeleteListener = (*Recorder)(nil)
	_ store.DeletedListener      = (*Recorder)(nil)
)

// NewRecorder returns a recorder for the given types, or all types.
func NewRecorder(types ...store.Type) *Recorder {
	return &Recorder{Types: types}
}

func (r *Recorder) Supports(t store.Type) bool {
	if len(r.Types) == 0 {
		return true
	}
	for _, s := range r.Types {
		if s == t {
			return true
		}
	}
	return false
}

func (r *Recorder) BeforeSave(ctx context.Context, db string, e store.Entity) error {
	return r.record(Event{Hook: "BeforeSave", DB: db, Entity: e})
}

func (r *Recorder) Created(ctx context.Context, db string, e store.Entity) error {
	return r.record(Event{Hook: "Created", DB: db, Entity: e})
}

func (r *Recorder) Updated(ctx context.Context, db string, old, new store.Entity) error {
	return r.record(Event{Hook: "Updated", DB: db, Entity: new, Old: old})
}

func (r *Recorder) BeforeDelete(ctx context.Context, db string, e store.Entity) error {
	return r.record(Event{Hook: "BeforeDelete", DB: db, Entity: e})
}

func (r *Recorder) Deleted(ctx context.Context, db string, e store.Entity) error {
	return r.record(Event{Hook: "Deleted", DB: db, Entity: e})
}

func (r *Recorder) record(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Fail[ev.Hook]
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Hooks returns the hook names of the recorded events, in order.
func (r *Recorder) Hooks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	hooks := make([]string, len(r.events))
	for i, ev := range r.events {
		hooks[i] = ev.Hook
	}
	return hooks
}

// Count returns how many events of hook were recorded.
func (r *Recorder) Count(hook string) int {
	n := 0
	for _, h := range r.Hooks() {
		if h == hook {
			n++
		}
	}
	return n
}

// Reset forgets the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
