package sqlitedoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/dbstore/engine"
	"github.com/roach88/dbstore/query"
	"github.com/roach88/dbstore/update"
)

// collection addresses the rows of documents with one collection name.
type collection struct {
	name string
	db   *database
}

var _ engine.Collection = (*collection)(nil)

func (c *collection) Name() string { return c.name }

func (c *collection) Get(ctx context.Context, s engine.Session, id string) (engine.Document, error) {
	q, err := c.db.conn(s)
	if err != nil {
		return nil, err
	}

	var data string
	err = q.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", c.name, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return engine.Document(data), nil
}

func (c *collection) Find(ctx context.Context, s engine.Session, q *query.Query) ([]engine.Document, error) {
	conn, err := c.db.conn(s)
	if err != nil {
		return nil, err
	}
	stmt, err := compileFind(c.name, q, c.db.log)
	if err != nil {
		return nil, fmt.Errorf("translate query on %s: %w", c.name, err)
	}

	rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	defer rows.Close()

	var docs []engine.Document
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		docs = append(docs, engine.Document(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return docs, nil
}

func (c *collection) Count(ctx context.Context, s engine.Session, filter query.Node) (int64, error) {
	conn, err := c.db.conn(s)
	if err != nil {
		return 0, err
	}
	stmt, err := compileCount(c.name, filter, c.db.log)
	if err != nil {
		return 0, fmt.Errorf("translate query on %s: %w", c.name, err)
	}

	var n int64
	if err := conn.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

func (c *collection) Insert(ctx context.Context, s engine.Session, id string, doc engine.Document) error {
	conn, err := c.writer(s)
	if err != nil {
		return err
	}
	data, err := withID(doc, id)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)", c.name, id, data)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Replace overwrites the document in place, keeping its rowid and hence
// its natural position in unsorted results.
func (c *collection) Replace(ctx context.Context, s engine.Session, id string, doc engine.Document) error {
	conn, err := c.writer(s)
	if err != nil {
		return err
	}
	data, err := withID(doc, id)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		"UPDATE documents SET data = ? WHERE collection = ? AND id = ?", data, c.name, id)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", c.name, id, err)
	}
	return nil
}

func (c *collection) Delete(ctx context.Context, s engine.Session, id string) (bool, error) {
	conn, err := c.writer(s)
	if err != nil {
		return false, err
	}
	res, err := conn.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", c.name, id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return n > 0, nil
}

// Update runs ups as one UPDATE statement.
func (c *collection) Update(ctx context.Context, s engine.Session, id string, ups []update.FieldUpdate) (bool, error) {
	conn, err := c.writer(s)
	if err != nil {
		return false, err
	}
	stmt, applied, err := compileUpdate(c.name, id, ups, c.db.log)
	if err != nil {
		return false, fmt.Errorf("translate update on %s/%s: %w", c.name, id, err)
	}
	if !applied {
		return false, nil
	}
	if _, err := conn.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
		return false, fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	return true, nil
}

// writer returns the connection for a write, refusing read-only sessions.
func (c *collection) writer(s engine.Session) (querier, error) {
	if s != nil && s.ReadOnly() {
		return nil, fmt.Errorf("write to %s in read-only session: %w", c.name, engine.ErrReadOnly)
	}
	return c.db.conn(s)
}

// withID returns doc with its "_id" key set to id.
func withID(doc engine.Document, id string) (string, error) {
	fields := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &fields); err != nil {
			return "", fmt.Errorf("document %s is not a JSON object: %w", id, err)
		}
	}
	rawID, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	fields[engine.IDField] = rawID

	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
