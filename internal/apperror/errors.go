// Package apperror defines the error taxonomy shared by the services and the
// HTTP layer. Services return *Error values; handlers translate them into
// stable status codes without leaking internal detail. The Reason field is
// an internal code meant for logs and metrics only.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the boundary mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindNotFound
	KindUnauthorized
	KindBadRequest
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Internal reason codes. They never reach the response body.
const (
	ReasonNotFound       = "not_found"
	ReasonInactive       = "inactive"
	ReasonBadPassword    = "bad_password"
	ReasonInvalidToken   = "invalid_token"
	ReasonWrongKind      = "wrong_kind"
	ReasonReusedToken    = "reused_token"
	ReasonBlacklisted    = "blacklisted"
	ReasonNotSuperuser   = "not_superuser"
	ReasonNoPermission   = "no_permission"
	ReasonDuplicateEmail = "duplicate_email"
	ReasonDuplicateRole  = "duplicate_role"
	ReasonRoleInUse      = "role_in_use"
)

// Error is the typed error returned by the service layer.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.Reason, e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithCause attaches the underlying error and returns the receiver.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func newError(kind Kind, reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

// Conflict reports a uniqueness or state conflict (duplicate email, role name).
func Conflict(reason, msg string) *Error { return newError(KindConflict, reason, msg) }

// NotFound is used on admin paths only; public auth paths remap it to Unauthorized.
func NotFound(msg string) *Error { return newError(KindNotFound, ReasonNotFound, msg) }

// Unauthorized reports bad credentials or an unusable token.
func Unauthorized(reason, msg string) *Error { return newError(KindUnauthorized, reason, msg) }

// BadRequest reports a caller mistake such as a wrong old password.
func BadRequest(msg string) *Error { return newError(KindBadRequest, "", msg) }

// Forbidden reports an authenticated caller lacking the required standing.
func Forbidden(reason, msg string) *Error { return newError(KindForbidden, reason, msg) }

// KindOf returns the Kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// ReasonOf returns the internal reason code carried by err.
func ReasonOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// HTTPStatus maps a kind to its external status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
