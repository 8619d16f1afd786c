// Package engine defines the contract between the entity store and an
// underlying document engine.
//
// Documents cross this boundary as JSON objects. The id of a document is
// passed separately and is also addressable in queries as "_id". A nil
// Session means "no transaction": each call commits on its own.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/update"
)

// IDField is the document key holding the entity id.
const IDField = "_id"

var (
	// ErrNotSupported is returned by engines for optional capabilities they
	// do not provide.
	ErrNotSupported = errors.New("engine: not supported")

	// ErrReadOnly is returned for writes through a read-only session.
	ErrReadOnly = errors.New("engine: read-only session")
)

// Document is one stored JSON object.
type Document []byte

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d, v)
}

// MarshalJSON returns d unchanged so documents embed as raw JSON.
func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return d, nil
}

// Engine is a connected document engine.
type Engine interface {
	// Database returns the handle for the named logical database,
	// creating it if needed.
	Database(ctx context.Context, name string) (Database, error)

	// SupportsTransactions reports whether Database.Begin can be used.
	SupportsTransactions() bool

	// Close releases every database handle.
	Close(ctx context.Context) error
}

// Index declares a secondary index over one or more fields.
type Index struct {
	Fields []string
	Unique bool
}

// CollectionSpec configures a collection when it is resolved.
type CollectionSpec struct {
	Indexes []Index
	// FastWrite lowers write acknowledgement where the engine supports it.
	FastWrite bool
}

// TxOptions configure a session.
type TxOptions struct {
	ReadOnly bool
}

// Database is one logical database.
type Database interface {
	Name() string

	// Collection resolves the named collection and materializes the
	// indexes of spec not created yet. Creating an index that already
	// exists is a no-op. Engines with transactional DDL create indexes
	// inside s when it is not nil.
	Collection(ctx context.Context, s Session, name string, spec CollectionSpec) (Collection, error)

	// Begin starts a session bound to one transaction.
	Begin(ctx context.Context, opts TxOptions) (Session, error)

	// PutBlob stores the content of r under (bucket, id), replacing any
	// previous blob with that id. r is consumed fully before PutBlob returns.
	PutBlob(ctx context.Context, s Session, bucket, id string, r io.Reader, metadata map[string]any) error

	// GetBlob copies the blob (bucket, id) into w and returns its metadata.
	// found is false when no such blob exists.
	GetBlob(ctx context.Context, s Session, bucket, id string, w io.Writer) (metadata map[string]any, found bool, err error)

	// Native returns the engine's own database handle.
	Native() any
}

// Collection is a named group of documents inside a Database.
type Collection interface {
	Name() string

	// Get returns the document with id, or nil when it does not exist.
	Get(ctx context.Context, s Session, id string) (Document, error)

	// Find returns documents matching q's filter, ordered and paginated.
	Find(ctx context.Context, s Session, q *query.Query) ([]Document, error)

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, s Session, filter query.Node) (int64, error)

	Insert(ctx context.Context, s Session, id string, doc Document) error

	// Replace overwrites the whole document with id.
	Replace(ctx context.Context, s Session, id string, doc Document) error

	// Delete removes the document with id and reports whether it existed.
	Delete(ctx context.Context, s Session, id string) (bool, error)

	// Update applies ups to the document with id as one atomic instruction.
	// applied is false when no known operation remained to apply.
	Update(ctx context.Context, s Session, id string, ups []update.FieldUpdate) (applied bool, err error)
}

// Session binds operations to one transaction. A session is owned by a
// single goroutine.
type Session interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// End releases the session. Ending an uncommitted session rolls it back.
	End(ctx context.Context)

	ReadOnly() bool

	// Native returns the engine's own session handle.
	Native() any
}
