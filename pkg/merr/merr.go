// Package merr classifies workflow failures.
//
// Leaf errors are marks: wrap any cause with one of the Mark helpers and test
// the result with errors.Is, the classification survives further wrapping.
package merr

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrAuthorizationDenied: the actor lacks rights for a mutation.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrNotFound: a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyResolved: a referenced entity is in a terminal state.
	ErrAlreadyResolved = errors.New("already resolved")
	// ErrPersistence: a unit of work failed to commit.
	ErrPersistence = errors.New("persistence failure")
	// ErrDelivery: a recipient could not be reached.
	ErrDelivery = errors.New("delivery failure")
	// ErrStaleConnection: the originating connection is gone.
	ErrStaleConnection = errors.New("stale connection")
)

// Persistence marks err as a persistence failure. Returns nil for a nil err.
func Persistence(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrPersistence)
}

// Delivery marks err as a delivery failure. Returns nil for a nil err.
func Delivery(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrDelivery)
}

// Terminal reports whether err aborts a workflow before any mutation.
func Terminal(err error) bool {
	return errors.IsAny(err, ErrAuthorizationDenied, ErrNotFound, ErrAlreadyResolved)
}

// Result is the outcome of a step at the persistence boundary.
type Result struct {
	OK  bool
	Err error
}

// Ok returns a successful result.
func Ok() Result { return Result{OK: true} }

// Fail returns a failed result carrying a persistence-marked cause.
func Fail(err error, op string) Result {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Result{Err: Persistence(err, op)}
}
