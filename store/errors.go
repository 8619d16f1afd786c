package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dbstore/engine"
)

var (
	// ErrReadOnly is returned for writes inside ExecuteReadOnly.
	ErrReadOnly = engine.ErrReadOnly

	// ErrNoTransactions is returned by the transaction entry points when
	// the engine cannot run transactions.
	ErrNoTransactions = errors.New("store: engine does not support transactions")
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeOperation marks a failed engine call: write, read, delete,
	// update or blob I/O.
	CodeOperation ErrorCode = "OPERATION"

	// CodeTransaction marks a transaction that was rolled back or failed to
	// begin or commit.
	CodeTransaction ErrorCode = "TRANSACTION"
)

// Error is the failure returned by store operations. The cause is kept and
// reachable through errors.Is and errors.As.
type Error struct {
	Code ErrorCode

	// Op names the store operation, e.g. "save" or "commit".
	Op string

	DB         string
	Collection string
	ID         string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Op)

	var at []string
	if e.DB != "" {
		at = append(at, "db="+e.DB)
	}
	if e.Collection != "" {
		at = append(at, "collection="+e.Collection)
	}
	if e.ID != "" {
		at = append(at, "id="+e.ID)
	}
	if len(at) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(at, ", "))
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsOperationError reports whether err is or wraps a CodeOperation error.
func IsOperationError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == CodeOperation
	}
	return false
}

// IsTransactionError reports whether err is or wraps a CodeTransaction
// error.
func IsTransactionError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == CodeTransaction
	}
	return false
}

// ListenerError wraps a failure returned by a listener hook.
type ListenerError struct {
	Hook string
	Type Type
	Err  error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("%s listener for %s: %v", e.Hook, e.Type, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }
