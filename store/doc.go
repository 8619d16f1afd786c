// Package store persists typed entities in a document engine.
//
// A Store wraps an engine.Engine and exposes one operation set, written as
// generic package functions over an Executor:
//
//	s := store.New(eng)
//	db := s.DB("app")
//
//	u, err := store.Save(ctx, db, &User{Name: "ann"})
//	u, err = store.SetField[*User](ctx, db, u.ID, "name", "anna")
//	users, err := store.Find[*User](ctx, db, query.New(query.Eq("name", "anna")))
//
// The same functions run inside a transaction by passing the *Tx handed to
// ExecuteInTransaction instead of a *Database:
//
//	err := s.ExecuteInTransaction(ctx, "app", func(ctx context.Context, tx *store.Tx) error {
//		_, err := store.Save(ctx, tx, &User{Name: "bob"})
//		return err
//	})
//
// Entity types are pointers to structs implementing Entity, usually by
// embedding Base. Each type maps to one collection per database, named by
// the store's NamingStrategy unless the type implements Named. Optional
// interfaces declare indexes (Indexed), relax write acknowledgement
// (FastWriter) and supply ids (IDCreator).
//
// Listeners observe saves, updates and deletes synchronously. A listener
// error aborts the operation that triggered it.
//
// Absent entities are not errors: reads and updates of a missing id return
// the zero value, and deletes report false.
package store
