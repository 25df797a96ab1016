// Package apperr defines the error kinds shared by every domain service and
// their translation to HTTP responses at the handler boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindUnauthorized
	KindValidation
	KindMalformedPayload
	KindNotFound
	KindConflict
	KindConflictIgnored
	KindInvalidTransition
	KindConnectionFailed
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation_error"
	case KindMalformedPayload:
		return "malformed_payload"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindConflictIgnored:
		return "conflict_ignored"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConnectionFailed:
		return "connection_failed"
	case KindStoreFailure:
		return "store_failure"
	}
	return "unknown"
}

// Error is a classified application error. Message is safe to show to the
// caller; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, format, args...)
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func InvalidTransition(from, to string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot transition appointment from %s to %s", from, to)}
}

func Store(err error, op string) *Error {
	return &Error{Kind: KindStoreFailure, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Status maps a kind to its HTTP status.
func (k Kind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindMalformedPayload:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindConflictIgnored:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// Body is the JSON error envelope returned to clients.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ToHTTP converts err into an echo.HTTPError. Store and unknown failures get a
// generic message so backend details never reach the client.
func ToHTTP(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var e *Error
	if !errors.As(err, &e) {
		return echo.NewHTTPError(http.StatusInternalServerError, Body{Error: KindStoreFailure.String(), Message: "something went wrong, please try again"})
	}

	body := Body{Error: e.Kind.String(), Message: e.Message, Field: e.Field}
	switch e.Kind {
	case KindStoreFailure, KindUnknown:
		body.Message = "something went wrong, please try again"
	case KindConnectionFailed:
		body.Message = "could not connect to doctor, please scan again"
	}
	return echo.NewHTTPError(e.Kind.Status(), body).SetInternal(err)
}
