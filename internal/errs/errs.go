// Package errs defines the error taxonomy used across Solvency's core and
// the HTTP-boundary mapping from kind to status code.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the purposes of HTTP status mapping and
// logging, per spec.md §7. Kind is a classification, not a distinct Go type
// per kind — callers construct an *Error with the kind they mean.
type Kind string

const (
	KindNotFound   Kind = "NotFound"
	KindValidation Kind = "Validation"
	KindCsvParse   Kind = "CsvParse"
	KindDatabase   Kind = "Database"
	KindPool       Kind = "Pool"
	KindIO         Kind = "Io"
	KindInternal   Kind = "Internal"
)

// Error is a typed-kind error with an optional wrapped cause and an optional
// field name for Validation errors surfaced next to the offending input.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFound is shorthand for a 404-mapped error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Validation is shorthand for a 422-mapped error, optionally naming the
// offending field.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Field: field}
}

// Database wraps a relational-store error.
func Database(cause error) *Error {
	return Wrap(KindDatabase, "database error", cause)
}

// Internal wraps an invariant-violation or serialization failure.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal error", cause)
}

// KindOf extracts the Kind of err, defaulting to KindInternal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps a Kind to the HTTP status code the boundary renders.
func StatusCode(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindCsvParse:
		return http.StatusBadRequest
	case KindDatabase, KindPool, KindIO, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
