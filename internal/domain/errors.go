package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the HTTP layer can pick a status code
// without inspecting error strings.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindDatabase   ErrorKind = "database"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NewDatabaseError wraps an unexpected persistence failure. Known kinds must
// never be rewrapped with it; they pass through service layers unchanged.
func NewDatabaseError(err error) *Error {
	return &Error{Kind: KindDatabase, Message: "unexpected database error", Err: err}
}

// KindOf returns the kind of err, or KindDatabase for errors that carry no
// classification.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindDatabase
}

func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
