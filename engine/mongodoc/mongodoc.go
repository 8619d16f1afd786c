// Package mongodoc is a document engine backed by MongoDB.
//
// Collections, indexes and GridFS buckets are native. Queries translate to
// BSON filters, and field updates to a single update document grouped by
// operator. Sessions are driver sessions with one multi-document
// transaction each, so the server must run as a replica set or sharded
// cluster for Begin to succeed.
package mongodoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/roach88/dbstore/engine"
)

// Defaults for connecting and for GridFS buckets.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultChunkSize      = 1024
)

type settings struct {
	connectTimeout time.Duration
	chunkSize      int32
	log            *slog.Logger
}

// Option configures an Engine.
type Option func(*settings)

// WithConnectTimeout bounds the initial connect and ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// WithChunkSize sets the GridFS chunk size in bytes.
func WithChunkSize(n int32) Option {
	return func(s *settings) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// Engine wraps a connected client.
type Engine struct {
	client *mongo.Client
	opts   settings
	owned  bool

	mu  sync.Mutex
	dbs map[string]*database
}

var _ engine.Engine = (*Engine)(nil)

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri string, opts ...Option) (*Engine, error) {
	s := newSettings(opts)

	cctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri).SetConnectTimeout(s.connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	e := New(client, opts...)
	e.owned = true
	return e, nil
}

// New wraps an existing client. Close does not disconnect it.
func New(client *mongo.Client, opts ...Option) *Engine {
	return &Engine{client: client, opts: newSettings(opts), dbs: make(map[string]*database)}
}

func newSettings(opts []Option) settings {
	s := settings{
		connectTimeout: DefaultConnectTimeout,
		chunkSize:      DefaultChunkSize,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Client returns the underlying client.
func (e *Engine) Client() *mongo.Client { return e.client }

// Database returns the handle for name. Mongo creates databases lazily on
// first write.
func (e *Engine) Database(ctx context.Context, name string) (engine.Database, error) {
	if name == "" {
		return nil, errors.New("database name is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dbs == nil {
		return nil, errors.New("engine is closed")
	}
	if db, ok := e.dbs[name]; ok {
		return db, nil
	}

	db := &database{
		name:        name,
		db:          e.client.Database(name),
		client:      e.client,
		opts:        e.opts,
		collections: make(map[string]*collection),
		indexes:     make(map[string]bool),
	}
	e.dbs[name] = db
	return db, nil
}

// SupportsTransactions is true; Begin fails on a standalone server.
func (e *Engine) SupportsTransactions() bool { return true }

// Close forgets every database handle and disconnects the client if
// Connect created it.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.dbs = nil
	e.mu.Unlock()

	if !e.owned {
		return nil
	}
	if err := e.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect from mongo: %w", err)
	}
	return nil
}
