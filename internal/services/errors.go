package services

import (
	"errors"
	"fmt"

	"github.com/fixithostel/fixit/internal/database"
	"gorm.io/gorm"
)

// ErrorKind classifies a service failure so callers can react without
// parsing messages
type ErrorKind string

const (
	ErrorKindNotFound        ErrorKind = "not_found"
	ErrorKindInvalidArgument ErrorKind = "invalid_argument"
	ErrorKindConflict        ErrorKind = "conflict"
	ErrorKindStoreFailure    ErrorKind = "store_failure"
)

// ServiceError is the structured error returned by every service operation
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed.
// Only store failures are transient.
func (e *ServiceError) Retryable() bool {
	return e.Kind == ErrorKindStoreFailure
}

// NotFound builds a not_found error
func NotFound(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument builds an invalid_argument error
func InvalidArgument(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrorKindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a conflict error
func Conflict(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrorKindConflict, Message: fmt.Sprintf(format, args...)}
}

// StoreFailure wraps an underlying persistence error
func StoreFailure(err error, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrorKindStoreFailure, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or "" when err is not a ServiceError
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err is a ServiceError of kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// storeError converts a store error into a ServiceError. A missing row
// becomes not_found, a unique violation or a stale write becomes conflict.
func storeError(err error, what string) error {
	var se *ServiceError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return se
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Conflict("%s was modified concurrently", what)
	case errors.Is(err, database.ErrStaleIssue):
		return Conflict("%s was modified concurrently; reload and retry", what)
	default:
		return StoreFailure(err, "failed to access %s", what)
	}
}
