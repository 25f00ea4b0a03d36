package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

// Error kinds.
const (
	KindConfigNotFound           ErrorKind = "ConfigNotFound"
	KindConfigParse              ErrorKind = "ConfigParseError"
	KindTableNotFound            ErrorKind = "TableNotFound"
	KindNamedQueryNotFound       ErrorKind = "NamedQueryNotFound"
	KindInvalidIdentifier        ErrorKind = "InvalidIdentifier"
	KindRequiredParameterMissing ErrorKind = "RequiredParameterMissing"
	KindRouteNotAllowed          ErrorKind = "RouteNotAllowed"
	KindRouteNotFound            ErrorKind = "RouteNotFound"
	KindUpstreamConnection       ErrorKind = "UpstreamConnectionError"
	KindInternal                 ErrorKind = "InternalError"
)

// Error is a classified gateway error carrying a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
// This lets callers write errors.Is(err, core.ErrTableNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfigNotFound           = &Error{Kind: KindConfigNotFound}
	ErrConfigParse              = &Error{Kind: KindConfigParse}
	ErrTableNotFound            = &Error{Kind: KindTableNotFound}
	ErrNamedQueryNotFound       = &Error{Kind: KindNamedQueryNotFound}
	ErrInvalidIdentifier        = &Error{Kind: KindInvalidIdentifier}
	ErrRequiredParameterMissing = &Error{Kind: KindRequiredParameterMissing}
	ErrRouteNotAllowed          = &Error{Kind: KindRouteNotAllowed}
	ErrRouteNotFound            = &Error{Kind: KindRouteNotFound}
	ErrUpstreamConnection       = &Error{Kind: KindUpstreamConnection}
	ErrInternal                 = &Error{Kind: KindInternal}
)

// Errorf creates a classified error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, prefixing msg when given.
func Wrap(kind ErrorKind, err error, msg string) *Error {
	m := err.Error()
	if msg != "" {
		m = msg + ": " + m
	}
	return &Error{Kind: kind, Message: m, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain,
// or KindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to the status code the gateway answers with.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindConfigNotFound, KindRouteNotFound:
		return http.StatusNotFound
	case KindInvalidIdentifier, KindRequiredParameterMissing:
		return http.StatusBadRequest
	case KindRouteNotAllowed:
		return http.StatusForbidden
	case KindUpstreamConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
