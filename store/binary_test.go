package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbstore/internal/testutil"
	"github.com/roach88/dbstore/store"
)

func TestBinaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	bin, err := store.SaveBinary(ctx, db, "avatars", &store.Binary{
		Content:  strings.NewReader("png bytes"),
		Metadata: map[string]any{"contentType": "image/png", "width": 64},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", bin.ID)

	got, err := store.GetBinary(ctx, db, "avatars", bin.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(9), got.Size)

	data, err := got.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))

	var md struct {
		ContentType string `mapstructure:"contentType"`
		Width       int    `mapstructure:"width"`
	}
	require.NoError(t, got.DecodeMetadata(&md))
	assert.Equal(t, "image/png", md.ContentType)
	assert.Equal(t, 64, md.Width)
}

func TestBinaryReplaceAndMissing(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewStore(t).DB("app")

	_, err := store.SaveBinary(ctx, db, "docs", &store.Binary{ID: "readme", Content: strings.NewReader("v1")})
	require.NoError(t, err)
	_, err = store.SaveBinary(ctx, db, "docs", &store.Binary{ID: "readme", Content: strings.NewReader("v2")})
	require.NoError(t, err)

	got, err := store.GetBinary(ctx, db, "docs", "readme")
	require.NoError(t, err)
	data, err := got.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	missing, err := store.GetBinary(ctx, db, "docs", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	other, err := store.GetBinary(ctx, db, "images", "readme")
	require.NoError(t, err)
	assert.Nil(t, other, "buckets are separate")
}

func TestBinaryInTransaction(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t)

	err := s.ExecuteInTransaction(ctx, "app", func(ctx context.Context, tx *store.Tx) error {
		if _, err := store.SaveBinary(ctx, tx, "docs", &store.Binary{ID: "a", Content: strings.NewReader("x")}); err != nil {
			return err
		}
		got, err := store.GetBinary(ctx, tx, "docs", "a")
		require.NoError(t, err)
		assert.NotNil(t, got)
		return nil
	})
	require.NoError(t, err)

	err = s.ExecuteReadOnly(ctx, "app", func(ctx context.Context, tx *store.Tx) error {
		_, err := store.SaveBinary(ctx, tx, "docs", &store.Binary{ID: "b"})
		return err
	})
	assert.ErrorIs(t, err, store.ErrReadOnly)
}
