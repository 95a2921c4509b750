// Package apperr defines the error kinds surfaced by poll operations.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when a session id is already taken.
	ErrDuplicateID = errors.New("session id already exists")
	// ErrSessionInactive is returned when votes are submitted to an inactive session.
	ErrSessionInactive = errors.New("session is not active")
	// ErrUnauthorized is returned when a password-protected session was not unlocked.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError reports a blank or inconsistent input field. Nothing is written when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid returns a ValidationError for field.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StoreError wraps any other persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError unless it already is one of the known kinds.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateID) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
