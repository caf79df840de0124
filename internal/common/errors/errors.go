// Package errors provides standardized error handling for the matching engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Business errors surfaced to the caller.
	ErrCodeInvalidState        ErrorCode = "INVALID_STATE"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeInsufficientData    ErrorCode = "INSUFFICIENT_DATA"
	ErrCodeConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"
	ErrCodeLookupUnavailable   ErrorCode = "EXTERNAL_LOOKUP_UNAVAILABLE"

	// Infrastructure errors.
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeRecalibrationLocked      ErrorCode = "RECALIBRATION_LOCKED"
	ErrCodeInvalidInput             ErrorCode = "INVALID_INPUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is makes errors.Is match any StandardError carrying the same code.
func (e *StandardError) Is(target error) bool {
	var se *StandardError
	if errors.As(target, &se) {
		return se.Code == e.Code
	}
	return false
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// NewInvalidStateError signals an operation requested on an entity whose
// current status does not permit it.
func NewInvalidStateError(entity, status, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   fmt.Sprintf("%s is not in a state that permits this operation (status: %s)", entity, status),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError signals a missing freight/vehicle/match id.
func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientDataError signals that recalibration was attempted with too
// few labeled outcomes. Callers treat it as a no-op, not a failure.
func NewInsufficientDataError(have, want int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientData,
		Message:   "Not enough labeled feedback to recalibrate",
		Details:   fmt.Sprintf("have: %d, minimum: %d", have, want),
		Retryable: false,
		Metadata:  map[string]interface{}{"have": have, "minimum": want},
		Timestamp: time.Now().UTC(),
	}
}

// NewConcurrencyConflictError signals a failed optimistic-concurrency check.
func NewConcurrencyConflictError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConcurrencyConflict,
		Message:   fmt.Sprintf("Concurrent update detected on %s", entity),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLookupUnavailableError signals a failed pricing/emissions lookup. The
// engine substitutes the documented neutral default instead of failing.
func NewLookupUnavailableError(lookup string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLookupUnavailable,
		Message:   fmt.Sprintf("External lookup '%s' unavailable", lookup),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecalibrationLockedError signals that another recalibration run holds the lease.
func NewRecalibrationLockedError(holder string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecalibrationLocked,
		Message:   "Recalibration already in progress",
		Details:   fmt.Sprintf("lease holder: %s", holder),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeLookupUnavailable:
		return 3

	case ErrCodeConcurrencyConflict,
		ErrCodeRecalibrationLocked:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
