package store

import (
	"context"
	"errors"

	"github.com/roach88/dbstore/engine"
)

// Tx runs store operations inside one engine session. Writes made through
// a Tx are visible to later reads through the same Tx, and to everyone
// else once the transaction commits.
//
// A Tx is only valid inside the function it was passed to, and must not
// be shared between goroutines.
type Tx struct {
	sc scope
	db engine.Database
}

func (tx *Tx) scope() scope { return tx.sc }

// Name returns the database name.
func (tx *Tx) Name() string { return tx.sc.db }

// Session returns the engine session. Its Native method exposes the
// driver's own handle.
func (tx *Tx) Session() engine.Session { return tx.sc.session }

// Database returns the engine database the transaction runs on.
func (tx *Tx) Database() engine.Database { return tx.db }

// ReadOnly reports whether writes through tx are rejected.
func (tx *Tx) ReadOnly() bool { return tx.sc.session.ReadOnly() }

// ExecuteInTransaction runs fn in a new transaction on database db. The
// transaction commits when fn returns nil and rolls back when fn returns
// an error or panics; a panic is re-raised after the rollback. The session
// is always released.
//
// A returned error is a CodeTransaction *Error wrapping fn's error, or the
// begin or commit failure.
func (s *Store) ExecuteInTransaction(ctx context.Context, db string, fn func(ctx context.Context, tx *Tx) error) error {
	return s.run(ctx, db, engine.TxOptions{}, fn)
}

// ExecuteReadOnly is ExecuteInTransaction for a read-only transaction.
// Writes through the Tx fail with ErrReadOnly.
func (s *Store) ExecuteReadOnly(ctx context.Context, db string, fn func(ctx context.Context, tx *Tx) error) error {
	return s.run(ctx, db, engine.TxOptions{ReadOnly: true}, fn)
}

// InTransaction is ExecuteInTransaction for a function returning a result.
// The result is returned only when the transaction committed.
func InTransaction[R any](ctx context.Context, s *Store, db string, fn func(ctx context.Context, tx *Tx) (R, error)) (R, error) {
	var out R
	err := s.run(ctx, db, engine.TxOptions{}, func(ctx context.Context, tx *Tx) error {
		r, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

func (s *Store) run(ctx context.Context, db string, opts engine.TxOptions, fn func(ctx context.Context, tx *Tx) error) error {
	db = s.dbName(db)
	if !s.engine.SupportsTransactions() {
		return &Error{Code: CodeTransaction, Op: "begin", DB: db, Err: ErrNoTransactions}
	}

	edb, err := s.engine.Database(ctx, db)
	if err != nil {
		return &Error{Code: CodeTransaction, Op: "begin", DB: db, Err: err}
	}
	sess, err := edb.Begin(ctx, opts)
	if err != nil {
		return &Error{Code: CodeTransaction, Op: "begin", DB: db, Err: err}
	}
	defer sess.End(ctx)

	defer func() {
		if p := recover(); p != nil {
			if err := sess.Rollback(ctx); err != nil {
				s.log.Error("rollback after panic failed", "database", db, "error", err)
			}
			panic(p)
		}
	}()

	tx := &Tx{sc: scope{store: s, db: db, session: sess}, db: edb}
	if err := fn(ctx, tx); err != nil {
		if rbErr := sess.Rollback(ctx); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		s.log.Debug("transaction rolled back", "database", db, "error", err)
		return &Error{Code: CodeTransaction, Op: "transaction", DB: db, Err: err}
	}

	if err := sess.Commit(ctx); err != nil {
		return &Error{Code: CodeTransaction, Op: "commit", DB: db, Err: err}
	}
	return nil
}
