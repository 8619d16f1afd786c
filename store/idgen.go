package store

import (
	"github.com/google/uuid"
)

// IDGenerator produces ids for entities and binaries saved without one.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids, so documents
// inserted later sort after earlier ones by id.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) Generate() string { return f() }

// newID picks the id for e: its own CreateID when non-empty, else the
// store's generator.
func (s *Store) newID(e Entity) string {
	if c, ok := e.(IDCreator); ok {
		if id := c.CreateID(); id != "" {
			return id
		}
	}
	return s.ids.Generate()
}
