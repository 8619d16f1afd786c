package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbstore/internal/testutil"
	"github.com/roach88/dbstore/store"
)

func TestListenerSupportsFilter(t *testing.T) {
	ctx := context.Background()
	users := testutil.NewRecorder(store.TypeFor[*User]())
	all := testutil.NewRecorder()
	db := testutil.NewStore(t, store.WithListeners(users, all)).DB("app")

	_, err := store.Save(ctx, db, &Setting{Value: "x"})
	require.NoError(t, err)
	_, err = store.Save(ctx, db, &User{Name: "ann"})
	require.NoError(t, err)

	assert.Equal(t, []string{"BeforeSave", "Created"}, users.Hooks())
	assert.Equal(t, []string{"BeforeSave", "Created", "BeforeSave", "Created"}, all.Hooks())
	for _, ev := range users.Events() {
		assert.IsType(t, &User{}, ev.Entity)
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	var order []string
	first := &orderListener{name: "first", order: &order}
	second := &orderListener{name: "second", order: &order}

	s := testutil.NewStore(t)
	s.AddListener(first)
	s.AddListener(second)

	_, err := store.Save(ctx, s.DB("app"), &User{Name: "ann"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

// A listener registered after a type was first used is not applied to it.
func TestListenerAddedAfterFirstUse(t *testing.T) {
	ctx := context.Background()
	early := testutil.NewRecorder()
	late := testutil.NewRecorder()

	s := testutil.NewStore(t)
	s.AddListener(early)
	db := s.DB("app")

	_, err := store.Save(ctx, db, &User{Name: "ann"})
	require.NoError(t, err)

	s.AddListener(late)

	_, err = store.Save(ctx, db, &User{Name: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 2, early.Count("Created"))
	assert.Zero(t, late.Count("Created"), "User listeners were resolved before late was added")

	_, err = store.Save(ctx, db, &Setting{Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, late.Count("Created"), "types first used afterwards see late")
}

func TestListenerErrorAbortsOperation(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("rejected")
	rec := testutil.NewRecorder()
	rec.Fail = map[string]error{"BeforeSave": boom}
	db := testutil.NewStore(t, store.WithListeners(rec)).DB("app")

	u, err := store.Save(ctx, db, &User{Name: "ann"})
	require.Error(t, err)
	assert.Nil(t, u)
	assert.ErrorIs(t, err, boom)

	var le *store.ListenerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "BeforeSave", le.Hook)
	assert.Equal(t, store.TypeFor[*User](), le.Type)

	n, err := store.Count[*User](ctx, db, nil)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is written when BeforeSave fails")
}

func TestListenerErrorInTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecorder()
	rec.Fail = map[string]error{"Created": errors.New("audit failed")}
	s := testutil.NewStore(t, store.WithListeners(rec))

	err := s.ExecuteInTransaction(ctx, "app", func(ctx context.Context, tx *store.Tx) error {
		_, err := store.Save(ctx, tx, &User{Name: "ann"})
		return err
	})
	require.Error(t, err)
	assert.True(t, store.IsTransactionError(err))

	n, err := store.Count[*User](ctx, s.DB("app"), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type orderListener struct {
	name  string
	order *[]string
}

func (l *orderListener) Supports(store.Type) bool { return true }

func (l *orderListener) Created(ctx context.Context, db string, e store.Entity) error {
	*l.order = append(*l.order, l.name)
	return nil
}
