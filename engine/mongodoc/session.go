package mongodoc

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/dbstore/engine"
)

// session is one driver session running one transaction.
type session struct {
	sess     mongo.Session
	db       *database
	readOnly bool
	done     bool
}

var _ engine.Session = (*session)(nil)

func (s *session) Commit(ctx context.Context) error {
	s.done = true
	if err := s.sess.CommitTransaction(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	s.done = true
	if err := s.sess.AbortTransaction(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// End aborts an unfinished transaction and ends the driver session.
func (s *session) End(ctx context.Context) {
	if !s.done {
		if err := s.Rollback(ctx); err != nil {
			s.db.opts.log.Warn("rollback on session end failed", "database", s.db.name, "error", err)
		}
	}
	s.sess.EndSession(ctx)
}

func (s *session) ReadOnly() bool { return s.readOnly }

// Native returns the mongo.Session.
func (s *session) Native() any { return s.sess }
