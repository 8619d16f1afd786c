package sqlitedoc

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dolmen-go/contextio"

	"github.com/roach88/dbstore/engine"
)

// PutBlob reads r to the end and stores it under (bucket, id), replacing
// any previous content and metadata.
func (d *database) PutBlob(ctx context.Context, s engine.Session, bucket, id string, r io.Reader, metadata map[string]any) error {
	if s != nil && s.ReadOnly() {
		return fmt.Errorf("put blob %s/%s in read-only session: %w", bucket, id, engine.ErrReadOnly)
	}
	conn, err := d.conn(s)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, contextio.NewReader(ctx, r)); err != nil {
		return fmt.Errorf("read blob %s/%s: %w", bucket, id, err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	md, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata of blob %s/%s: %w", bucket, id, err)
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO blobs (bucket, id, data, metadata, length)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(bucket, id) DO UPDATE SET
			data = excluded.data,
			metadata = excluded.metadata,
			length = excluded.length,
			uploaded_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, bucket, id, buf.Bytes(), string(md), buf.Len())
	if err != nil {
		return fmt.Errorf("store blob %s/%s: %w", bucket, id, err)
	}
	return nil
}

// GetBlob copies the stored content into w.
func (d *database) GetBlob(ctx context.Context, s engine.Session, bucket, id string, w io.Writer) (map[string]any, bool, error) {
	conn, err := d.conn(s)
	if err != nil {
		return nil, false, err
	}

	var (
		data []byte
		md   string
	)
	err = conn.QueryRowContext(ctx,
		"SELECT data, metadata FROM blobs WHERE bucket = ? AND id = ?", bucket, id).Scan(&data, &md)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load blob %s/%s: %w", bucket, id, err)
	}

	metadata := map[string]any{}
	if err := json.Unmarshal([]byte(md), &metadata); err != nil {
		return nil, false, fmt.Errorf("decode metadata of blob %s/%s: %w", bucket, id, err)
	}

	if _, err := io.Copy(contextio.NewWriter(ctx, w), bytes.NewReader(data)); err != nil {
		return nil, false, fmt.Errorf("copy blob %s/%s: %w", bucket, id, err)
	}
	return metadata, true, nil
}
