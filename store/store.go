package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/dbstore/engine"
)

// DefaultDatabase is the database used when an empty name is given.
const DefaultDatabase = "default"

// NeedsUpdateFunc decides whether saving obj over the persisted old
// document should write. Returning false makes Save a no-op.
type NeedsUpdateFunc func(old, obj Entity) bool

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIDGenerator sets the generator for entities saved without an id.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithNamingStrategy sets how entity types map to collection names.
func WithNamingStrategy(n NamingStrategy) Option {
	return func(s *Store) {
		if n != nil {
			s.naming = n
		}
	}
}

// WithNeedsUpdate sets the policy consulted before overwriting an existing
// document. The default always writes.
func WithNeedsUpdate(f NeedsUpdateFunc) Option {
	return func(s *Store) {
		if f != nil {
			s.needsUpdate = f
		}
	}
}

// WithListeners registers listeners, as AddListener does.
func WithListeners(ls ...Listener) Option {
	return func(s *Store) {
		s.listeners.all = append(s.listeners.all, ls...)
	}
}

// WithDefaultDatabase sets the database used for an empty name.
func WithDefaultDatabase(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.defaultDB = name
		}
	}
}

// Store persists entities through an engine.
//
// Thread-safety: a Store is safe for concurrent use. Collection handles
// and per-type listener lists are cached on first use for the lifetime of
// the Store.
type Store struct {
	engine      engine.Engine
	log         *slog.Logger
	ids         IDGenerator
	naming      NamingStrategy
	needsUpdate NeedsUpdateFunc
	defaultDB   string

	collections collectionRegistry
	listeners   listenerRegistry
}

// New returns a store over eng.
func New(eng engine.Engine, opts ...Option) *Store {
	s := &Store{
		engine:      eng,
		log:         slog.Default(),
		ids:         UUIDv7Generator{},
		naming:      QualifiedNaming,
		needsUpdate: func(Entity, Entity) bool { return true },
		defaultDB:   DefaultDatabase,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.listeners.log = s.log
	return s
}

// Engine returns the underlying engine.
func (s *Store) Engine() engine.Engine { return s.engine }

// SupportsTransactions reports whether the transaction entry points can
// run.
func (s *Store) SupportsTransactions() bool { return s.engine.SupportsTransactions() }

// DB returns the non-transactional handle of the named database. An empty
// name selects the default database.
func (s *Store) DB(name string) *Database {
	return &Database{sc: scope{store: s, db: s.dbName(name)}}
}

// Collection returns the engine collection with the given name, resolving
// it through the registry. Use CollectionOf to apply an entity type's
// naming and indexes; an indexed type mapped to the same name still gets
// its indexes when first used after this call.
func (s *Store) Collection(ctx context.Context, db, name string) (engine.Collection, error) {
	db = s.dbName(db)
	c, err := s.collections.get(ctx, s, nil, db, name, engine.CollectionSpec{})
	if err != nil {
		return nil, &Error{Code: CodeOperation, Op: "collection", DB: db, Collection: name, Err: err}
	}
	return c, nil
}

// Close closes the engine and drops every cached handle.
func (s *Store) Close(ctx context.Context) error {
	s.collections.reset()
	s.listeners.reset()
	if err := s.engine.Close(ctx); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}

func (s *Store) dbName(name string) string {
	if name == "" {
		return s.defaultDB
	}
	return name
}

// Executor runs store operations. It is implemented by *Database and *Tx.
type Executor interface {
	scope() scope
}

// scope is what every operation runs against: a database of a store and,
// inside a transaction, the session.
type scope struct {
	store   *Store
	db      string
	session engine.Session
}

// Database is a non-transactional handle: each operation commits on its
// own.
type Database struct {
	sc scope
}

func (d *Database) scope() scope { return d.sc }

// Name returns the database name.
func (d *Database) Name() string { return d.sc.db }

// Store returns the owning store.
func (d *Database) Store() *Store { return d.sc.store }
