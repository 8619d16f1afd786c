package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/dbstore/engine"
)

// collectionRegistry memoizes engine collections by "db:collection" and
// the fast-write flag. Indexes declared by a later spec for a cached name
// are still created. Resolutions inside a transaction are not memoized
// because the engine may roll back the index DDL with it.
type collectionRegistry struct {
	m sync.Map // key -> *registered
}

type registered struct {
	coll    engine.Collection
	indexes map[string]bool
}

func (r *registered) covers(spec engine.CollectionSpec) bool {
	for _, idx := range spec.Indexes {
		if !r.indexes[indexKey(idx)] {
			return false
		}
	}
	return true
}

func indexKey(idx engine.Index) string {
	return fmt.Sprintf("%s/%t", strings.Join(idx.Fields, ","), idx.Unique)
}

func (r *collectionRegistry) get(ctx context.Context, s *Store, sess engine.Session, db, name string, spec engine.CollectionSpec) (engine.Collection, error) {
	key := db + ":" + name
	if spec.FastWrite {
		key += ":fast"
	}
	var prev *registered
	if v, ok := r.m.Load(key); ok {
		prev = v.(*registered)
		if prev.covers(spec) {
			return prev.coll, nil
		}
	}

	edb, err := s.engine.Database(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("resolve database %s: %w", db, err)
	}
	c, err := edb.Collection(ctx, sess, name, spec)
	if err != nil {
		return nil, fmt.Errorf("resolve collection %s: %w", name, err)
	}
	if sess != nil {
		return c, nil
	}

	next := &registered{coll: c, indexes: make(map[string]bool)}
	if prev != nil {
		for k := range prev.indexes {
			next.indexes[k] = true
		}
	}
	for _, idx := range spec.Indexes {
		next.indexes[indexKey(idx)] = true
	}
	// A concurrent Store may drop another caller's index keys. That only
	// costs one more engine call, which creates nothing twice.
	r.m.Store(key, next)
	s.log.Debug("registered collection", "key", key, "indexes", len(next.indexes), "fast_write", spec.FastWrite)
	return c, nil
}

func (r *collectionRegistry) reset() {
	r.m.Range(func(k, _ any) bool {
		r.m.Delete(k)
		return true
	})
}

// binding is an entity type resolved against one database.
type binding struct {
	typ  Type
	name string
	coll engine.Collection
}

// specOf reads the optional index and fast-write declarations of proto.
func specOf(proto Entity) engine.CollectionSpec {
	var spec engine.CollectionSpec
	if ix, ok := proto.(Indexed); ok {
		spec.Indexes = ix.Indexes()
	}
	if fw, ok := proto.(FastWriter); ok {
		spec.FastWrite = fw.FastWrite()
	}
	return spec
}

// resolve returns T's collection in sc's database.
func resolve[T Entity](ctx context.Context, sc scope) (binding, error) {
	t := TypeFor[T]()
	proto, err := newEntity[T]()
	if err != nil {
		return binding{typ: t}, err
	}
	name := sc.store.collectionName(t, proto)
	c, err := sc.store.collections.get(ctx, sc.store, sc.session, sc.db, name, specOf(proto))
	if err != nil {
		return binding{typ: t, name: name}, err
	}
	return binding{typ: t, name: name, coll: c}, nil
}

// CollectionOf returns the engine collection of entity type T, creating
// its declared indexes on first use.
func CollectionOf[T Entity](ctx context.Context, ex Executor) (engine.Collection, error) {
	sc := ex.scope()
	b, err := resolve[T](ctx, sc)
	if err != nil {
		return nil, sc.fail("collection", b, "", err)
	}
	return b.coll, nil
}
