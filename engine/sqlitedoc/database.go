package sqlitedoc

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/dbstore/engine"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - documents and blobs tables
const currentSchemaVersion = 1

// database is one SQLite file holding every collection of a logical
// database.
type database struct {
	name string
	db   *sql.DB
	log  *slog.Logger

	mu          sync.Mutex
	collections map[string]*collection
	indexes     map[string]bool // created and committed
}

var _ engine.Database = (*database)(nil)

// openDatabase creates or opens the SQLite file at path and applies the
// schema.
//
// The database is configured with:
//   - WAL mode so readers and one writer proceed concurrently
//   - NORMAL synchronous mode
//   - a busy timeout for lock contention
//   - a small pool so concurrent sessions use distinct connections
func openDatabase(ctx context.Context, name, path string, o options) (*database, error) {
	registerDriver()

	dsn := "file:" + path + "?" + url.Values{
		"_busy_timeout": {fmt.Sprint(o.busyTimeout.Milliseconds())},
	}.Encode()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(o.maxOpenConns)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &database{
		name:        name,
		db:          db,
		log:         o.log,
		collections: make(map[string]*collection),
		indexes:     make(map[string]bool),
	}, nil
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (d *database) Name() string { return d.name }

// Native returns the *sql.DB.
func (d *database) Native() any { return d.db }

func (d *database) close() error {
	return d.db.Close()
}

// Collection returns the named collection after creating the indexes of
// spec not created before. With a session the DDL runs inside its
// transaction and counts as created once that commits. FastWrite has no
// effect: every commit is acknowledged by SQLite.
func (d *database) Collection(ctx context.Context, s engine.Session, name string, spec engine.CollectionSpec) (engine.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	q, err := d.conn(s)
	if err != nil {
		return nil, err
	}

	// d.mu is not held across DDL, which may wait on another writer.
	for _, idx := range spec.Indexes {
		key := indexName(name, idx)
		if d.hasIndex(key) {
			continue
		}
		if err := d.createIndex(ctx, q, name, idx); err != nil {
			return nil, err
		}
		if ss, ok := s.(*session); ok {
			ss.pending = append(ss.pending, key)
		} else {
			d.markIndexes([]string{key})
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[name]
	if !ok {
		c = &collection{name: name, db: d}
		d.collections[name] = c
		d.log.Debug("resolved collection", "database", d.name, "collection", name, "indexes", len(spec.Indexes))
	}
	return c, nil
}

func (d *database) hasIndex(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.indexes[key]
}

// markIndexes records index names whose creation is committed.
func (d *database) markIndexes(keys []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		d.indexes[k] = true
	}
}

var unsafeIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// createIndex creates a partial expression index restricted to the
// collection. Re-creating an existing index is a no-op.
func (d *database) createIndex(ctx context.Context, q querier, collection string, idx engine.Index) error {
	if len(idx.Fields) == 0 {
		return fmt.Errorf("index on %s has no fields", collection)
	}

	exprs := make([]string, 0, len(idx.Fields))
	for _, f := range idx.Fields {
		exprs = append(exprs, "json_extract(data, "+jsonPath(f)+")")
	}

	stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON documents (%s) WHERE collection = %s",
		uniqueKeyword(idx.Unique), indexName(collection, idx), strings.Join(exprs, ", "), quote(collection))
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create index on %s(%s): %w", collection, strings.Join(idx.Fields, ", "), err)
	}
	return nil
}

func uniqueKeyword(unique bool) string {
	if unique {
		return "UNIQUE "
	}
	return ""
}

// indexName derives a stable identifier from the collection and fields.
// The hash keeps names distinct after sanitizing.
func indexName(collection string, idx engine.Index) string {
	key := collection + "\x00" + strings.Join(idx.Fields, "\x00") + fmt.Sprint(idx.Unique)
	h := fnv.New32a()
	h.Write([]byte(key))

	base := unsafeIdent.ReplaceAllString(collection+"_"+strings.Join(idx.Fields, "_"), "_")
	if len(base) > 48 {
		base = base[:48]
	}
	return fmt.Sprintf(`"idx_%s_%08x"`, base, h.Sum32())
}

// Begin starts a transaction on a dedicated connection. The read-only flag
// is recorded on the session; SQLite itself is not told.
func (d *database) Begin(ctx context.Context, opts engine.TxOptions) (engine.Session, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &session{tx: tx, db: d, readOnly: opts.ReadOnly}, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction bound to s, or the pool when s is nil.
func (d *database) conn(s engine.Session) (querier, error) {
	if s == nil {
		return d.db, nil
	}
	ss, ok := s.(*session)
	if !ok || ss.db != d {
		return nil, fmt.Errorf("session does not belong to database %q", d.name)
	}
	if ss.done {
		return nil, fmt.Errorf("session on database %q already finished", d.name)
	}
	return ss.tx, nil
}
