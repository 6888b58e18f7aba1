package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for callers. Its string value is the wire code
// placed in the "error" field of the response envelope.
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindProductUnavailable Kind = "ProductUnavailable"
	KindInsufficientStock  Kind = "InsufficientStock"
	KindUnauthorized       Kind = "Unauthorized"
	KindForbidden          Kind = "Forbidden"
	KindNotFound           Kind = "NotFound"
	KindInvalidTransition  Kind = "InvalidTransition"
	KindDuplicateRequest   Kind = "DuplicateRequest"
	KindStoreUnavailable   Kind = "StoreUnavailable"
)

// Error is a classified failure. Message is safe to show to the caller;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error without an underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error that keeps err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindStoreUnavailable for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindProductUnavailable, KindInsufficientStock, KindInvalidTransition:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateRequest:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
