// Package apperr is the error taxonomy shared by the services. Every error that crosses a
// service or HTTP boundary is an *Error carrying a Kind, so handlers can map it to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindValidation
	KindUpstream
	KindInconsistent
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindForbidden:
		return "FORBIDDEN"
	case KindValidation:
		return "VALIDATION"
	case KindUpstream:
		return "UPSTREAM_UNAVAILABLE"
	case KindInconsistent:
		return "SAGA_INCONSISTENT"
	default:
		return "INTERNAL"
	}
}

type Error struct {
	Kind Kind
	// Code is the machine readable code rendered in the response envelope. Defaults to Kind.String().
	Code string
	Msg  string
	// Status overrides the status derived from Kind. Used to relay a remote service's answer verbatim.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string) *Error   { return New(KindNotFound, msg) }
func Conflict(msg string) *Error   { return New(KindConflict, msg) }
func Forbidden(msg string) *Error  { return New(KindForbidden, msg) }
func Validation(msg string) *Error { return New(KindValidation, msg) }

func Upstream(msg string, err error) *Error {
	return Wrap(KindUpstream, msg, err)
}

func Inconsistent(msg string, err error) *Error {
	return Wrap(KindInconsistent, msg, err)
}

func Internal(msg string, err error) *Error {
	return Wrap(KindInternal, msg, err)
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// Message returns the client facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		return e.Kind.String()
	}
	return KindInternal.String()
}

func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
