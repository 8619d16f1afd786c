package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbstore/internal/testutil"
	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/store"
	"github.com/roach88/dbstore/update"
)

func TestSaveAssignsID(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann", Age: 30})
	require.NoError(t, err)
	assert.Equal(t, "id-1", u.ID)

	got, err := store.Get[*User](ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.Equal(t, "ann", got.Name)
}

func TestSaveAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	db := store.New(testutil.OpenSQLite(t), store.WithLogger(testutil.DiscardLogger())).DB("app")

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		u, err := store.Save(ctx, db, &User{Name: "u"})
		require.NoError(t, err)
		require.NotEmpty(t, u.ID)
		seen[u.ID] = true
	}
	assert.Len(t, seen, 20)
}

func TestSaveUsesCreateID(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	tk, err := store.Save(ctx, db, &Ticket{Number: 7})
	require.NoError(t, err)
	assert.Equal(t, "T-0007", tk.ID)

	// An empty CreateID falls back to the generator.
	tk, err = store.Save(ctx, db, &Ticket{})
	require.NoError(t, err)
	assert.Equal(t, "id-1", tk.ID)
}

func TestSaveKeepsCallerID(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	u := &User{Name: "ann"}
	u.ID = "ann"
	saved, err := store.Save(ctx, db, u)
	require.NoError(t, err)
	assert.Equal(t, "ann", saved.ID)
}

func TestSaveReplacesExisting(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecorder()
	db := testutil.NewStore(t, store.WithListeners(rec)).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann", Tags: []string{"a"}})
	require.NoError(t, err)

	u.Name = "anna"
	u.Tags = nil
	u, err = store.Save(ctx, db, u)
	require.NoError(t, err)
	assert.Equal(t, "anna", u.Name)
	assert.Nil(t, u.Tags, "replace drops fields missing from the new value")

	n, err := store.Count[*User](ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []string{"BeforeSave", "Created", "BeforeSave", "Updated"}, rec.Hooks())
	updated := rec.Events()[3]
	assert.Equal(t, "ann", updated.Old.(*User).Name)
	assert.Equal(t, "anna", updated.Entity.(*User).Name)
	assert.Equal(t, "app", updated.DB)
}

func TestSaveNeedsUpdatePolicy(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecorder()
	s := testutil.NewStore(t,
		store.WithListeners(rec),
		store.WithNeedsUpdate(func(old, obj store.Entity) bool {
			return old.(*User).Name != obj.(*User).Name
		}),
	)
	db := s.DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann"})
	require.NoError(t, err)
	rec.Reset()

	same, err := store.Save(ctx, db, &User{Base: u.Base, Name: "ann", Age: 99})
	require.NoError(t, err)
	assert.Equal(t, 99, same.Age, "the unsaved value is returned")
	assert.Empty(t, rec.Hooks())

	got, err := store.Get[*User](ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Age)
}

func TestSaveNil(t *testing.T) {
	db := testutil.NewStore(t).DB("app")
	u, err := store.Save[*User](context.Background(), db, nil)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	u, err := store.Get[*User](ctx, db, "nope")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = store.Get[*User](ctx, db, "")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestDatabasesAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)

	u, err := store.Save(ctx, s.DB("one"), &User{Name: "ann"})
	require.NoError(t, err)

	got, err := store.Get[*User](ctx, s.DB("two"), u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, store.DefaultDatabase, s.DB("").Name())
}

func TestSaveAllThenFind(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	saved, err := store.SaveAll(ctx, db, []*User{{Name: "b", Age: 2}, {Name: "a", Age: 1}})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	found, err := store.Find[*User](ctx, db, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, saved, found)
}

func TestFindSortPaginate(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	for _, u := range []*User{{Name: "c", Age: 30}, {Name: "a", Age: 10}, {Name: "b", Age: 20}, {Name: "d", Age: 40}} {
		_, err := store.Save(ctx, db, u)
		require.NoError(t, err)
	}

	names := func(us []*User) []string {
		out := make([]string, len(us))
		for i, u := range us {
			out[i] = u.Name
		}
		return out
	}

	found, err := store.Find[*User](ctx, db, query.New(query.Gte("age", 20)).Asc("age"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, names(found))

	found, err = store.Find[*User](ctx, db, query.Everything().Desc("age").Page(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, names(found))

	found, err = store.Find[*User](ctx, db, query.Everything().Asc("name").Page(0, query.Unbounded))
	require.NoError(t, err)
	assert.Len(t, found, 4)

	one, err := store.FindOne[*User](ctx, db, query.Everything().Desc("age").Page(1, 0))
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "c", one.Name)

	none, err := store.FindOne[*User](ctx, db, query.New(query.Eq("name", "zed")))
	require.NoError(t, err)
	assert.Nil(t, none)

	n, err := store.Count[*User](ctx, db, query.New(query.Lt("age", 35)).Page(0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "count ignores pagination")
}

func TestFindLegacyQuirks(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	_, err := store.SaveAll(ctx, db, []*User{
		{Name: "Ann Smith", Email: "ann@x"},
		{Name: "Bob"},
	})
	require.NoError(t, err)

	ninEmpty, err := store.Count[*User](ctx, db, query.New(query.Nin("email")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ninEmpty, "empty NIN matches a missing field")

	found, err := store.Find[*User](ctx, db, query.New(query.Contains("name", "(smith")))
	require.NoError(t, err, "invalid pattern falls back to a sanitized literal")
	require.Len(t, found, 1)
	assert.Equal(t, "Ann Smith", found[0].Name)
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	ok, err := store.Delete[*User](ctx, db, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Delete[*User](ctx, db, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.DeleteObject[*User](ctx, db, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteFiresEvents(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecorder()
	db := testutil.NewStore(t, store.WithListeners(rec)).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann"})
	require.NoError(t, err)
	rec.Reset()

	ok, err := store.DeleteObject(ctx, db, u)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"BeforeDelete", "Deleted"}, rec.Hooks())
	assert.Equal(t, u.ID, rec.Events()[1].Entity.GetID())

	got, err := store.Get[*User](ctx, db, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err = store.Delete[*User](ctx, db, u.ID)
	require.NoError(t, err)
	assert.False(t, ok, "deleting twice is idempotent")
}

func TestDeleteWhereAndObjects(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	saved, err := store.SaveAll(ctx, db, []*User{
		{Name: "a", Age: 1}, {Name: "b", Age: 2}, {Name: "c", Age: 3}, {Name: "d", Age: 4},
	})
	require.NoError(t, err)

	ok, err := store.DeleteWhere[*User](ctx, db, query.New(query.Gt("age", 2)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteWhere[*User](ctx, db, query.New(query.Gt("age", 2)))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.DeleteObjects(ctx, db, saved[:2])
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := store.Count[*User](ctx, db, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetFieldFiresOneUpdate(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecorder(store.TypeFor[*Setting]())
	db := testutil.NewStore(t, store.WithListeners(rec)).DB("app")

	s, err := store.Save(ctx, db, &Setting{Value: "v1"})
	require.NoError(t, err)
	rec.Reset()

	updated, err := store.SetField[*Setting](ctx, db, s.ID, "value", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Value)

	got, err := store.Get[*Setting](ctx, db, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Value)

	require.Equal(t, 1, rec.Count("Updated"))
	for _, ev := range rec.Events() {
		if ev.Hook == "Updated" {
			assert.Equal(t, "v1", ev.Old.(*Setting).Value)
			assert.Equal(t, "v2", ev.Entity.(*Setting).Value)
		}
	}
}

func TestUpdateFieldsEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecorder()
	db := testutil.NewStore(t, store.WithListeners(rec)).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann"})
	require.NoError(t, err)
	rec.Reset()

	got, err := store.UpdateFields[*User](ctx, db, u.ID, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.UpdateFields[*User](ctx, db, "", map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.UpdateFields[*User](ctx, db, "missing", map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Empty(t, rec.Hooks())
}

func TestApplyCombinesOperations(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann", Email: "a@x", Age: 30, Tags: []string{"a", "b"}})
	require.NoError(t, err)

	got, err := store.Apply[*User](ctx, db, u.ID,
		update.Set("name", "anna"),
		update.Inc("age", 2),
		update.Unset("email"),
		update.Pull("tags", "a"),
	)
	require.NoError(t, err)
	assert.Equal(t, "anna", got.Name)
	assert.Equal(t, 32, got.Age)
	assert.Empty(t, got.Email)
	assert.Equal(t, []string{"b"}, got.Tags)

	got, err = store.Apply[*User](ctx, db, u.ID, update.AddToSet("tags", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got.Tags)

	got, err = store.Apply[*User](ctx, db, u.ID, update.AddToSet("tags", "c"), update.Max("age", 40))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, got.Tags)
	assert.Equal(t, 40, got.Age)
}

func TestApplyUnknownOperationsOnly(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecorder()
	db := testutil.NewStore(t, store.WithListeners(rec)).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann"})
	require.NoError(t, err)
	rec.Reset()

	got, err := store.Apply[*User](ctx, db, u.ID, update.FieldUpdate{Field: "name", Op: "UPPERCASE"})
	require.NoError(t, err)
	assert.Equal(t, u, got, "the unchanged entity is returned")
	assert.Zero(t, rec.Count("Updated"))
}

func TestIncrementAndUnset(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann", Email: "a@x"})
	require.NoError(t, err)

	u, err = store.Increment[*User](ctx, db, u.ID, "age", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, u.Age)

	u, err = store.UnsetField[*User](ctx, db, u.ID, "email")
	require.NoError(t, err)
	assert.Empty(t, u.Email)
}

func TestIncrementTextFieldFails(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann"})
	require.NoError(t, err)

	_, err = store.Increment[*User](ctx, db, u.ID, "name", 1)
	require.Error(t, err)
	assert.True(t, store.IsOperationError(err))

	got, err := store.Get[*User](ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", got.Name)
}

func TestConcurrentIncrementsAreAtomic(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "counter"})
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Increment[*User](ctx, db, u.ID, "age", 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Get[*User](ctx, db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.Age)
}

func TestOperationErrors(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	_, err := store.Save(ctx, db, &Account{Email: "a@x"})
	require.NoError(t, err)

	_, err = store.Save(ctx, db, &Account{Email: "a@x"})
	require.Error(t, err)
	assert.True(t, store.IsOperationError(err))
	assert.False(t, store.IsTransactionError(err))

	var se *store.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "save", se.Op)
	assert.Equal(t, "app", se.DB)
	assert.Equal(t, "accounts", se.Collection)
	assert.Equal(t, "id-2", se.ID)
}

func TestRawCollectionBeforeIndexedType(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)

	raw, err := s.Collection(ctx, "app", "accounts")
	require.NoError(t, err)
	assert.Equal(t, "accounts", raw.Name())

	db := s.DB("app")
	_, err = store.Save(ctx, db, &Account{Email: "a@x"})
	require.NoError(t, err)
	_, err = store.Save(ctx, db, &Account{Email: "a@x"})
	require.Error(t, err, "the unique index exists despite the earlier raw resolution")
	assert.True(t, store.IsOperationError(err))
}

func TestErrorString(t *testing.T) {
	err := &store.Error{Code: store.CodeOperation, Op: "save", DB: "app", Collection: "users", ID: "u1", Err: errors.New("disk full")}
	assert.Equal(t, "OPERATION: save (db=app, collection=users, id=u1): disk full", err.Error())

	err = &store.Error{Code: store.CodeTransaction, Op: "commit"}
	assert.Equal(t, "TRANSACTION: commit", err.Error())
}

func TestCollectionNaming(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, store.Type{PkgPath: "github.com/roach88/dbstore/store_test", Name: "User"}, store.TypeFor[*User]())
	assert.Equal(t, store.TypeFor[User](), store.TypeFor[*User]())
	assert.Equal(t, "store_test.User", store.TypeFor[*User]().String())

	tests := []struct {
		naming store.NamingStrategy
		name   string
		want   string
	}{
		{store.QualifiedNaming, "UserAccount", "model.UserAccount"},
		{store.SimpleNaming, "UserAccount", "UserAccount"},
		{store.SnakeNaming, "UserAccount", "user_account"},
		{store.SnakeNaming, "HTTPServer", "http_server"},
		{store.SnakeNaming, "User2FA", "user2_fa"},
		{store.SnakeNaming, "ID", "id"},
		{store.SnakeNaming, "Already_Snake", "already_snake"},
	}
	for _, tt := range tests {
		got := tt.naming.CollectionName(store.Type{PkgPath: "example.com/app/model", Name: tt.name})
		assert.Equal(t, tt.want, got, tt.name)
	}

	s := testutil.NewStore(t, store.WithNamingStrategy(store.SnakeNaming))
	coll, err := store.CollectionOf[*User](ctx, s.DB("app"))
	require.NoError(t, err)
	assert.Equal(t, "user", coll.Name())

	coll, err = store.CollectionOf[*Account](ctx, s.DB("app"))
	require.NoError(t, err)
	assert.Equal(t, "accounts", coll.Name(), "Named overrides the strategy")

	raw, err := s.Collection(ctx, "app", "accounts")
	require.NoError(t, err)
	assert.Same(t, coll, raw, "collections are memoized per database and name")
}
