// Package common defines the error kinds shared by every layer of the
// certificate portal. Callers match kinds with errors.Is and read the
// human-readable text with Message.
package common

import (
	"errors"
	"fmt"
)

var (
	// Input errors.
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// Access errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// Backend errors.
	ErrIngestion = errors.New("ingestion error")
	ErrStore     = errors.New("store error")
)

// Error attaches a kind and a user-facing message to an underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is matches the kind as well as anything in the wrapped chain.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around err.
func Wrap(kind error, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Message returns the user-facing text of err. Errors that were not built by
// this package yield their kind's text, or "internal error".
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	for _, k := range []error{ErrValidation, ErrConflict, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrIngestion, ErrStore} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "internal error"
}

// Detail returns the text of the underlying cause, if any.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return ""
}
