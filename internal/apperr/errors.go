// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	InvalidInput
	Unauthorized
	Forbidden
	Conflict
	NotFound
	ResourceExhausted
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case ResourceExhausted:
		return "resource_exhausted"
	default:
		return "internal"
	}
}

// Error carries a Kind and a client-safe message. Err, when set, is the
// underlying cause and is only ever logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against another *Error of the same kind, so callers can
// write errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Kind-only values for errors.Is comparisons.
var (
	ErrInvalidInput      = &Error{Kind: InvalidInput}
	ErrUnauthorized      = &Error{Kind: Unauthorized}
	ErrForbidden         = &Error{Kind: Forbidden}
	ErrConflict          = &Error{Kind: Conflict}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrResourceExhausted = &Error{Kind: ResourceExhausted}
)

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-safe message of err. Errors without a kind get
// a generic message so internal details never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.String()
	}
	return "internal server error"
}
