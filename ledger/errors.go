/*
errors.go - Error taxonomy for the bottle ledger

PURPOSE:
  All ledger errors in one place. Callers classify with errors.Is against
  the sentinels; the structured errors carry the details a user needs
  (which record, which counter, which bound).

CATEGORIES:
  ErrNotFound            - a referenced row is missing
  ErrInvariantViolation  - a counter would leave its bounds, or the day is done
  ErrConflict            - the operation is already in its target state
  ErrInvalidInput        - malformed request values
  ErrConcurrentModification - optimistic version check failed (retryable)

SEE ALSO:
  - delta.go: produces InvariantError
  - lifecycle.go: produces ErrDayClosed and ConflictError
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvariantViolation is returned when a change would break a counter bound.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDayClosed is returned when a done day is targeted by a moderator operation.
	ErrDayClosed = fmt.Errorf("%w: bottle usage for this day is already done", ErrInvariantViolation)

	// ErrConflict is returned when an operation is already in its target state.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput is returned for malformed request values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrForbidden is returned when the actor may not touch a record.
	ErrForbidden = errors.New("forbidden")

	// ErrStoreRequired is returned when a service is built without a store.
	ErrStoreRequired = errors.New("store is required")
)

// =============================================================================
// STRUCTURED ERRORS - Use with errors.As()
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvariantError names the counter and the bound a change would break.
type InvariantError struct {
	Entity string // "total_bottles", "bottle_usage", "customer"
	Field  string
	Value  int    // the value the change would produce
	Bound  string // e.g. ">= 0", "<= total_bottles"
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s.%s would be %d, must be %s", e.Entity, e.Field, e.Value, e.Bound)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// ConflictError is returned when a record is already in the requested state.
type ConflictError struct {
	Entity string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InputError reports a malformed field in a request.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation can be retried from a fresh read.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the request, not the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the target state was already reached.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// NotFound builds a NotFoundError for the named record.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}
