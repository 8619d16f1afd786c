package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dbstore/engine/sqlitedoc"
	"github.com/roach88/dbstore/store"
)

// DiscardLogger drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenSQLite opens an SQLite engine in a temporary directory, closed when
// the test ends.
func OpenSQLite(t testing.TB, opts ...sqlitedoc.Option) *sqlitedoc.Engine {
	t.Helper()

	opts = append([]sqlitedoc.Option{sqlitedoc.WithLogger(DiscardLogger())}, opts...)
	eng, err := sqlitedoc.Open(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return eng
}

// NewStore returns a store over a fresh SQLite engine, with a discarded
// log and sequential ids ("id-1", "id-2", ...). opts are applied after
// those defaults.
func NewStore(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()

	defaults := []store.Option{
		store.WithLogger(DiscardLogger()),
		store.WithIDGenerator(NewSequenceIDs("id")),
	}
	return store.New(OpenSQLite(t), append(defaults, opts...)...)
}
