package calendar

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound is returned when a series does not exist or is deleted.
	ErrNotFound = errors.New("series not found")
	// ErrOccurrenceNotFound is returned when an occurrence date is not one
	// the series' recurrence would ever generate.
	ErrOccurrenceNotFound = errors.New("occurrence not found")
	// ErrConflict is returned on an optimistic-concurrency mismatch, for
	// both series versions and exception revisions.
	ErrConflict = errors.New("version conflict")
	// ErrAlreadyExists is returned when creating a series with a taken id.
	ErrAlreadyExists = errors.New("series already exists")
	// ErrTemplateNotFound is returned for an unknown template key.
	ErrTemplateNotFound = errors.New("template not found")
)

// ValidationError reports a malformed series or recurrence field.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
	}
	return e.Message
}

// Details returns the structured fields for API error responses.
func (e *ValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

// StoreError wraps a transient persistence failure. Reads may be retried
// once; writes must surface the failure so the caller resubmits.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err as a StoreError for the given operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
