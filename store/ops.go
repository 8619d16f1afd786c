package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/update"
)

// fail wraps an engine failure as a CodeOperation *Error. Listener errors
// and errors that already are store errors pass through unchanged.
func (sc scope) fail(op string, b binding, id string, err error) error {
	switch err.(type) {
	case nil:
		return nil
	case *Error, *ListenerError:
		return err
	}
	return &Error{Code: CodeOperation, Op: op, DB: sc.db, Collection: b.name, ID: id, Err: err}
}

// Save inserts obj, or replaces the document with obj's id.
//
// An empty id is assigned first, from obj's CreateID when it implements
// IDCreator, else from the store's IDGenerator. When a document with the
// id exists and the store's needs-update policy declines, obj is returned
// without writing. Otherwise BeforeSave fires, the document is written and
// read back, and Created or Updated fires with the persisted entity, which
// is returned.
func Save[T Entity](ctx context.Context, ex Executor, obj T) (T, error) {
	return save(ctx, ex.scope(), obj)
}

func save[T Entity](ctx context.Context, sc scope, obj T) (T, error) {
	var zero T
	if isNil(obj) {
		return zero, nil
	}

	b, err := resolve[T](ctx, sc)
	if err != nil {
		return zero, sc.fail("save", b, obj.GetID(), err)
	}

	if obj.GetID() == "" {
		obj.SetID(sc.store.newID(obj))
	}
	id := obj.GetID()

	oldDoc, err := b.coll.Get(ctx, sc.session, id)
	if err != nil {
		return zero, sc.fail("save", b, id, err)
	}

	var old T
	if oldDoc != nil {
		if old, err = decode[T](oldDoc); err != nil {
			return zero, sc.fail("save", b, id, err)
		}
		if !sc.store.needsUpdate(old, obj) {
			return obj, nil
		}
	}

	if err := sc.beforeSave(ctx, b.typ, obj); err != nil {
		return zero, err
	}

	doc, err := json.Marshal(obj)
	if err != nil {
		return zero, sc.fail("save", b, id, fmt.Errorf("encode %s: %w", b.typ, err))
	}
	if oldDoc == nil {
		err = b.coll.Insert(ctx, sc.session, id, doc)
	} else {
		err = b.coll.Replace(ctx, sc.session, id, doc)
	}
	if err != nil {
		return zero, sc.fail("save", b, id, err)
	}

	saved, err := reload[T](ctx, sc, b, id)
	if err != nil {
		return zero, err
	}
	if isNil(saved) {
		// Unacknowledged writes may not be readable yet.
		saved = obj
	}

	if oldDoc == nil {
		err = sc.created(ctx, b.typ, saved)
	} else {
		err = sc.updated(ctx, b.typ, old, saved)
	}
	if err != nil {
		return zero, err
	}
	return saved, nil
}

func reload[T Entity](ctx context.Context, sc scope, b binding, id string) (T, error) {
	var zero T
	doc, err := b.coll.Get(ctx, sc.session, id)
	if err != nil {
		return zero, sc.fail("get", b, id, err)
	}
	if doc == nil {
		return zero, nil
	}
	e, err := decode[T](doc)
	if err != nil {
		return zero, sc.fail("get", b, id, err)
	}
	return e, nil
}

// SaveAll saves each entity in order. It is not atomic: every entity is
// written and notified on its own. On failure it returns the entities
// saved so far with the error. Wrap it in a transaction for all-or-nothing
// semantics.
func SaveAll[T Entity](ctx context.Context, ex Executor, objs []T) ([]T, error) {
	sc := ex.scope()
	out := make([]T, 0, len(objs))
	for _, obj := range objs {
		saved, err := save(ctx, sc, obj)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// Get returns the entity with id, or the zero value when there is none.
func Get[T Entity](ctx context.Context, ex Executor, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, nil
	}
	sc := ex.scope()
	b, err := resolve[T](ctx, sc)
	if err != nil {
		return zero, sc.fail("get", b, id, err)
	}
	return reload[T](ctx, sc, b, id)
}

// Find returns the entities matching q, sorted and paginated as q says. A
// nil q returns every entity.
func Find[T Entity](ctx context.Context, ex Executor, q *query.Query) ([]T, error) {
	sc := ex.scope()
	b, err := resolve[T](ctx, sc)
	if err != nil {
		return nil, sc.fail("find", b, "", err)
	}
	return find[T](ctx, sc, b, q)
}

func find[T Entity](ctx context.Context, sc scope, b binding, q *query.Query) ([]T, error) {
	docs, err := b.coll.Find(ctx, sc.session, q)
	if err != nil {
		return nil, sc.fail("find", b, "", err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		e, err := decode[T](doc)
		if err != nil {
			return nil, sc.fail("find", b, "", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// FindOne returns the first entity matching q after sorting and skipping,
// or the zero value.
func FindOne[T Entity](ctx context.Context, ex Executor, q *query.Query) (T, error) {
	var zero T
	one := query.Query{Limit: 1}
	if q != nil {
		one = *q
		one.Limit = 1
	}
	found, err := Find[T](ctx, ex, &one)
	if err != nil || len(found) == 0 {
		return zero, err
	}
	return found[0], nil
}

// Count returns the number of entities matching q's filter. Ordering and
// pagination are ignored.
func Count[T Entity](ctx context.Context, ex Executor, q *query.Query) (int64, error) {
	sc := ex.scope()
	b, err := resolve[T](ctx, sc)
	if err != nil {
		return 0, sc.fail("count", b, "", err)
	}
	var filter query.Node
	if q != nil {
		filter = q.Filter
	}
	n, err := b.coll.Count(ctx, sc.session, filter)
	if err != nil {
		return 0, sc.fail("count", b, "", err)
	}
	return n, nil
}

// Delete deletes the entity with id and reports whether it existed.
func Delete[T Entity](ctx context.Context, ex Executor, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return DeleteWhere[T](ctx, ex, query.New(query.ByID(id)))
}

// DeleteObject deletes obj by its id.
func DeleteObject[T Entity](ctx context.Context, ex Executor, obj T) (bool, error) {
	if isNil(obj) {
		return false, nil
	}
	return Delete[T](ctx, ex, obj.GetID())
}

// DeleteObjects deletes each entity and reports whether any was removed.
// The first failure stops the loop.
func DeleteObjects[T Entity](ctx context.Context, ex Executor, objs []T) (bool, error) {
	var removed bool
	for _, obj := range objs {
		ok, err := DeleteObject(ctx, ex, obj)
		if err != nil {
			return removed, err
		}
		removed = removed || ok
	}
	return removed, nil
}

// DeleteWhere deletes every entity matching q, one at a time: BeforeDelete
// fires, the document is deleted by id, then Deleted fires if it was still
// there. It reports whether at least one document was removed. A failure
// stops the loop; earlier deletions are kept unless the call runs in a
// transaction.
func DeleteWhere[T Entity](ctx context.Context, ex Executor, q *query.Query) (bool, error) {
	sc := ex.scope()
	b, err := resolve[T](ctx, sc)
	if err != nil {
		return false, sc.fail("delete", b, "", err)
	}

	matches, err := find[T](ctx, sc, b, q)
	if err != nil {
		return false, err
	}

	var removed bool
	for _, e := range matches {
		id := e.GetID()
		if err := sc.beforeDelete(ctx, b.typ, e); err != nil {
			return removed, err
		}
		ok, err := b.coll.Delete(ctx, sc.session, id)
		if err != nil {
			return removed, sc.fail("delete", b, id, err)
		}
		if !ok {
			continue
		}
		removed = true
		if err := sc.deleted(ctx, b.typ, e); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// UpdateFields sets each field of fields on the entity with id, as one
// atomic update. See Apply.
func UpdateFields[T Entity](ctx context.Context, ex Executor, id string, fields map[string]any) (T, error) {
	return Apply[T](ctx, ex, id, update.FromMap(fields)...)
}

// Apply applies ups to the entity with id as one atomic update and returns
// the updated entity.
//
// The zero value is returned, and no listener fires, when id is empty, ups
// is empty or no entity has the id. Otherwise BeforeSave fires with the
// current entity. When no operation remains after skipping unknown ones,
// the current entity is returned without an Updated event; else the
// update runs, the entity is read back and Updated fires.
func Apply[T Entity](ctx context.Context, ex Executor, id string, ups ...update.FieldUpdate) (T, error) {
	var zero T
	if id == "" || len(ups) == 0 {
		return zero, nil
	}

	sc := ex.scope()
	b, err := resolve[T](ctx, sc)
	if err != nil {
		return zero, sc.fail("update", b, id, err)
	}

	old, err := reload[T](ctx, sc, b, id)
	if err != nil || isNil(old) {
		return zero, err
	}

	if err := sc.beforeSave(ctx, b.typ, old); err != nil {
		return zero, err
	}

	applied, err := b.coll.Update(ctx, sc.session, id, ups)
	if err != nil {
		return zero, sc.fail("update", b, id, err)
	}
	if !applied {
		return old, nil
	}

	updated, err := reload[T](ctx, sc, b, id)
	if err != nil || isNil(updated) {
		return zero, err
	}
	if err := sc.updated(ctx, b.typ, old, updated); err != nil {
		return zero, err
	}
	return updated, nil
}

// Increment adds by to a numeric field.
func Increment[T Entity](ctx context.Context, ex Executor, id, field string, by any) (T, error) {
	return Apply[T](ctx, ex, id, update.Inc(field, by))
}

// SetField assigns value to field.
func SetField[T Entity](ctx context.Context, ex Executor, id, field string, value any) (T, error) {
	return Apply[T](ctx, ex, id, update.Set(field, value))
}

// UnsetField removes field.
func UnsetField[T Entity](ctx context.Context, ex Executor, id, field string) (T, error) {
	return Apply[T](ctx, ex, id, update.Unset(field))
}
