// Package apperr defines the error kinds raised by services and translated by the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error; the HTTP layer maps kinds to status codes.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindTokenExpired Kind = "token_expired"
	KindTokenVerify  Kind = "token_verify"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindDataAccess   Kind = "data_access"
	KindForbidden    Kind = "forbidden"
	KindValidation   Kind = "validation"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrTokenExpired = &Error{Kind: KindTokenExpired}
	ErrTokenVerify  = &Error{Kind: KindTokenVerify}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrDataAccess   = &Error{Kind: KindDataAccess}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrValidation   = &Error{Kind: KindValidation}
)

// Error is an application error of a given kind.
// Resource is set for KindNotFound; Operation and Reason for KindInvalidState and KindDataAccess.
type Error struct {
	Kind      Kind
	Message   string
	Resource  string
	Operation string
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s not found", e.Resource)
	case KindInvalidState:
		return fmt.Sprintf("invalid state for %s: %s", e.Operation, e.Reason)
	case KindDataAccess:
		if e.Err != nil {
			return fmt.Sprintf("data access failed during %s: %v", e.Operation, e.Err)
		}
		return fmt.Sprintf("data access failed during %s", e.Operation)
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. A sentinel (no resource, operation
// or reason) matches every error of its kind; otherwise the non-empty fields must match too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind != e.Kind {
		return false
	}
	if t.Resource != "" && t.Resource != e.Resource {
		return false
	}
	if t.Operation != "" && t.Operation != e.Operation {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	return true
}

// Unauthorized returns a credential or session check failure.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// TokenExpired returns an expiry failure; clients may retry through the refresh flow.
func TokenExpired(err error) *Error {
	return &Error{Kind: KindTokenExpired, Message: "token expired", Err: err}
}

// TokenVerify returns a signature or claim verification failure.
func TokenVerify(err error) *Error {
	return &Error{Kind: KindTokenVerify, Message: "token verification failed", Err: err}
}

// NotFound returns a missing-entity error for resource (e.g. "session", "order").
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Resource: resource}
}

// InvalidState returns an error for an entity that exists but does not permit operation.
func InvalidState(operation, reason string) *Error {
	return &Error{Kind: KindInvalidState, Operation: operation, Reason: reason}
}

// DataAccess wraps a persistence failure that happened during operation.
func DataAccess(operation string, err error) *Error {
	return &Error{Kind: KindDataAccess, Operation: operation, Err: err}
}

// Forbidden returns an authorization failure for an authenticated caller.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// Validation returns an input validation failure.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
