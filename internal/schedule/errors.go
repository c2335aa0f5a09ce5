package schedule

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a proposal or target entry that no longer exists.
var ErrNotFound = errors.New("schedule: not found")

// ConflictError reports a near-duplicate confirmed entry discovered at
// approval time. The proposal stays staged so the operator can resolve the
// clash manually and retry.
type ConflictError struct {
	ConflictingEntryID string
	ConflictingTime    string
}

func (e *ConflictError) Error() string {
	if e.ConflictingTime == "" {
		return "schedule: conflicting entry exists"
	}
	return fmt.Sprintf("schedule: conflicting entry exists at %s", e.ConflictingTime)
}

// ServiceError wraps internal failures with a dotted operation.reason code.
type ServiceError struct {
	code string
	err  error
}

// NewServiceError builds a ServiceError from an operation, reason and cause.
func NewServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason identifier.
func (e *ServiceError) Code() string {
	return e.code
}
