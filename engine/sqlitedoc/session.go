package sqlitedoc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dbstore/engine"
)

// session is one *sql.Tx. Operations issued with it see its own
// uncommitted writes; other connections see them after Commit.
type session struct {
	tx       *sql.Tx
	db       *database
	readOnly bool
	done     bool
	pending  []string // indexes created inside tx
}

var _ engine.Session = (*session)(nil)

func (s *session) Commit(ctx context.Context) error {
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.db.markIndexes(s.pending)
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	s.done = true
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// End rolls back a session that was neither committed nor rolled back.
func (s *session) End(ctx context.Context) {
	if s.done {
		return
	}
	if err := s.Rollback(ctx); err != nil {
		s.db.log.Warn("rollback on session end failed", "database", s.db.name, "error", err)
	}
}

func (s *session) ReadOnly() bool { return s.readOnly }

// Native returns the *sql.Tx.
func (s *session) Native() any { return s.tx }
