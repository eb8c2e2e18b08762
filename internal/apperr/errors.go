package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so the HTTP layer can map it to a status code
// without inspecting message text.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindNotFound           Kind = "NOT_FOUND"
	KindForbidden          Kind = "FORBIDDEN"
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindConflict           Kind = "CONFLICT"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindInternal           Kind = "INTERNAL"
)

// Error is a typed application error. Callers match on Kind; Message is
// safe to return to clients, internal detail stays in the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a typed error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a typed error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the Kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidTransition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindServiceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the user-facing message for err. Untyped errors
// collapse to a generic message so internal detail is not leaked.
func ClientMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal server error"
}
