// Package sqlitedoc is an embedded document engine on SQLite.
//
// Each logical database is one SQLite file, named <name>.db, in the
// engine's directory. Documents of all collections share a documents
// table and are stored as JSON; queries are compiled to SQL over
// json_extract and json_each, and field updates to a single UPDATE whose
// new value is a nested json_set/json_remove/json_patch expression.
//
// Sessions are database/sql transactions. The pool holds several
// connections, so concurrent sessions get WAL snapshot isolation: a session
// reads its own writes, and other sessions see them after commit. Two
// sessions writing at once conflict; the second fails with SQLITE_BUSY
// once the busy timeout expires or its snapshot is stale.
package sqlitedoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/roach88/dbstore/engine"
)

// Default pool and lock settings.
const (
	DefaultMaxOpenConns = 4
	DefaultBusyTimeout  = 5 * time.Second
)

type options struct {
	maxOpenConns int
	busyTimeout  time.Duration
	log          *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithMaxOpenConns sets the connection pool size of each database.
// Values below 1 are ignored.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithBusyTimeout sets how long a connection waits for a lock.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Engine opens one SQLite file per logical database under a directory.
type Engine struct {
	dir  string
	opts options

	mu  sync.Mutex
	dbs map[string]*database
}

var _ engine.Engine = (*Engine)(nil)

// Open returns an engine storing databases in dir, creating dir if needed.
// Databases are opened lazily on first use.
func Open(dir string, opts ...Option) (*Engine, error) {
	o := options{
		maxOpenConns: DefaultMaxOpenConns,
		busyTimeout:  DefaultBusyTimeout,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Engine{dir: dir, opts: o, dbs: make(map[string]*database)}, nil
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// Database opens (once) and returns the named database.
func (e *Engine) Database(ctx context.Context, name string) (engine.Database, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid database name %q", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dbs == nil {
		return nil, errors.New("engine is closed")
	}
	if db, ok := e.dbs[name]; ok {
		return db, nil
	}

	path := filepath.Join(e.dir, name+".db")
	db, err := openDatabase(ctx, name, path, e.opts)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", name, err)
	}
	e.dbs[name] = db
	e.opts.log.Debug("opened database", "name", name, "path", path)
	return db, nil
}

// SupportsTransactions is always true.
func (e *Engine) SupportsTransactions() bool { return true }

// Close closes every open database. The engine cannot be used afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, db := range e.dbs {
		if err := db.close(); err != nil {
			errs = append(errs, fmt.Errorf("close database %s: %w", name, err))
		}
	}
	e.dbs = nil
	return errors.Join(errs...)
}
