package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrQuery      ErrorCode = "QUERY_ERROR"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the ecswait API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// InvalidGroupError is returned when a query filter is built without a
// cluster (group) identifier.
type InvalidGroupError struct {
	Group string
}

func (e *InvalidGroupError) Error() string {
	if e.Group == "" {
		return "invalid group: cluster identifier is required"
	}
	return fmt.Sprintf("invalid group: %q is not a usable cluster identifier", e.Group)
}

// QueryError wraps a failed task listing call. The cause is kept as-is so
// callers can match it with errors.Is / errors.As.
type QueryError struct {
	Cluster string
	Cause   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("list tasks for cluster %s: %v", e.Cluster, e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// TimeoutError is returned by a polling loop whose deadline passed while
// tasks were still running.
type TimeoutError struct {
	Cluster   string
	Timeout   time.Duration
	Polls     int
	LastCount int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for cluster %s to drain (%d polls, %d tasks left)",
		e.Timeout, e.Cluster, e.Polls, e.LastCount)
}

// ErrSkipped is returned instead of a TimeoutError when soft-fail is enabled.
var ErrSkipped = errors.New("wait skipped after timeout")

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}
