package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/mitchellh/mapstructure"
)

// Binary is a blob with metadata, stored in a named bucket.
type Binary struct {
	ID       string
	Metadata map[string]any

	// Content is read to the end by SaveBinary. GetBinary sets it to a
	// reader over the loaded bytes.
	Content io.Reader

	// Size is the number of bytes loaded by GetBinary.
	Size int64
}

// Bytes reads the remaining content.
func (b *Binary) Bytes() ([]byte, error) {
	if b.Content == nil {
		return nil, nil
	}
	return io.ReadAll(b.Content)
}

// DecodeMetadata decodes the metadata into v, a pointer to a struct or
// map. Struct fields are matched with their mapstructure tags; numeric and
// string values are converted as needed.
func (b *Binary) DecodeMetadata(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(b.Metadata); err != nil {
		return fmt.Errorf("decode metadata of binary %s: %w", b.ID, err)
	}
	return nil
}

// SaveBinary stores bin in bucket under bin.ID, assigning an id when it is
// empty. A previous blob with the same id is replaced.
func SaveBinary(ctx context.Context, ex Executor, bucket string, bin *Binary) (*Binary, error) {
	if bin == nil {
		return nil, nil
	}
	sc := ex.scope()
	if bin.ID == "" {
		bin.ID = sc.store.ids.Generate()
	}

	fail := func(err error) error {
		return &Error{Code: CodeOperation, Op: "save binary", DB: sc.db, Collection: bucket, ID: bin.ID, Err: err}
	}

	edb, err := sc.store.engine.Database(ctx, sc.db)
	if err != nil {
		return nil, fail(err)
	}
	content := bin.Content
	if content == nil {
		content = bytes.NewReader(nil)
	}
	if err := edb.PutBlob(ctx, sc.session, bucket, bin.ID, content, bin.Metadata); err != nil {
		return nil, fail(err)
	}
	return bin, nil
}

// GetBinary loads the blob with id from bucket, or returns nil when it
// does not exist.
func GetBinary(ctx context.Context, ex Executor, bucket, id string) (*Binary, error) {
	if id == "" {
		return nil, nil
	}
	sc := ex.scope()
	fail := func(err error) error {
		return &Error{Code: CodeOperation, Op: "get binary", DB: sc.db, Collection: bucket, ID: id, Err: err}
	}

	edb, err := sc.store.engine.Database(ctx, sc.db)
	if err != nil {
		return nil, fail(err)
	}
	var buf bytes.Buffer
	md, found, err := edb.GetBlob(ctx, sc.session, bucket, id, &buf)
	if err != nil {
		return nil, fail(err)
	}
	if !found {
		return nil, nil
	}
	return &Binary{ID: id, Metadata: md, Content: bytes.NewReader(buf.Bytes()), Size: int64(buf.Len())}, nil
}
