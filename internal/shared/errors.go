// ============================================================================
// internal/shared/errors.go
// Typed error taxonomy surfaced by every service; the gateway maps these to
// HTTP status codes.
// ============================================================================

package shared

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input: missing required fields, unknown
// instance keys, out-of-range grade values. Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a missing referenced entity (academic year config,
// period, evaluation slot, user, course...).
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// PolicyError reports a grading-rule rejection: the instance is not the next
// legal one, its window is closed, or the period is manually closed. The
// Reason carries the specific rule that failed.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// ConflictError reports a uniqueness violation that survived the pre-checks,
// e.g. a duplicate academic-year config created in a race. Not retried.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// StorageError wraps an I/O failure from the persistence layer. Propagated
// unchanged; retries, if any, belong to the driver.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Constructors, kept short because services raise these on nearly every
// failing branch.

func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

func Policyf(format string, args ...interface{}) error {
	return &PolicyError{Reason: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func Storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsPolicy(err error) bool {
	var e *PolicyError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsStorage(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}
