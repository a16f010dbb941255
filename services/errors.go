package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the webhook secret is missing or wrong
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedRequest is returned for a body that is not a JSON object
	ErrMalformedRequest = errors.New("malformed request body")

	// ErrNotConfigured is returned when the write path is used without storage
	ErrNotConfigured = errors.New("storage not configured")
)

// ValidationError names the request field that failed validation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required"}
}

// StorageError wraps a persistence failure on the write path
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
