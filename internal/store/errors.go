package store

import (
	"errors"
	"fmt"
)

// Common errors for store operations.
var (
	// ErrNotFound indicates no record matched the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrTxDone indicates a transaction was used after Commit or Rollback.
	ErrTxDone = errors.New("transaction already finished")
)

// PersistenceError wraps a failure of the underlying database.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with the failing operation. Returns nil for nil and
// leaves ErrNotFound unwrapped so callers can compare it directly.
func WrapError(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPersistence returns true if err is or wraps a *PersistenceError.
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
