package store

import (
	"fmt"
	"path"

	goreflect "github.com/goccy/go-reflect"

	"github.com/roach88/dbstore/engine"
)

// Entity is a persistable value with a string id. Entity types are
// pointers to structs; the id is stored under the "_id" document key.
type Entity interface {
	GetID() string
	SetID(id string)
}

// Base implements Entity. Embed it to get an id stored as "_id".
type Base struct {
	ID string `json:"_id,omitempty"`
}

func (b *Base) GetID() string   { return b.ID }
func (b *Base) SetID(id string) { b.ID = id }

// Named overrides the collection name chosen by the NamingStrategy.
type Named interface {
	CollectionName() string
}

// Indexed declares indexes created when the type's collection is first
// resolved in a database.
type Indexed interface {
	Indexes() []engine.Index
}

// FastWriter marks a type whose writes may skip acknowledgement.
// Engines without the notion ignore it.
type FastWriter interface {
	FastWrite() bool
}

// IDCreator supplies ids for new entities. An empty result falls back to
// the store's IDGenerator.
type IDCreator interface {
	CreateID() string
}

// Type identifies an entity type by package path and name. Pointer
// indirections are removed, so *User and User share one Type.
type Type struct {
	PkgPath string
	Name    string
}

// TypeFor returns the Type of T.
func TypeFor[T any]() Type {
	rt := goreflect.TypeOf((*T)(nil)).Elem()
	for rt.Kind() == goreflect.Ptr {
		rt = rt.Elem()
	}
	return Type{PkgPath: rt.PkgPath(), Name: rt.Name()}
}

// String returns the package-qualified name, e.g. "model.User".
func (t Type) String() string {
	if t.PkgPath == "" {
		return t.Name
	}
	return path.Base(t.PkgPath) + "." + t.Name
}

// newEntity allocates the value a pointer entity type points to.
func newEntity[T Entity]() (T, error) {
	var zero T
	rt := goreflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != goreflect.Ptr {
		return zero, fmt.Errorf("entity type %s must be a pointer", rt.String())
	}
	return goreflect.New(rt.Elem()).Interface().(T), nil
}

// isNil reports whether e is nil or a nil pointer.
func isNil(e any) bool {
	if e == nil {
		return true
	}
	v := goreflect.ValueNoEscapeOf(e)
	return v.Kind() == goreflect.Ptr && v.IsNil()
}

// decode unmarshals doc into a new T. Entities that do not map "_id"
// to their id field get it assigned explicitly.
func decode[T Entity](doc engine.Document) (T, error) {
	var zero T
	e, err := newEntity[T]()
	if err != nil {
		return zero, err
	}
	if err := doc.Decode(e); err != nil {
		return zero, fmt.Errorf("decode %s: %w", TypeFor[T](), err)
	}
	if e.GetID() == "" {
		var key struct {
			ID string `json:"_id"`
		}
		if err := doc.Decode(&key); err == nil {
			e.SetID(key.ID)
		}
	}
	return e, nil
}
