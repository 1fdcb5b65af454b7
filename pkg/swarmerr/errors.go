package swarmerr

import (
	"errors"
	"fmt"
)

// Kind is a provider-neutral error classification.
type Kind string

const (
	NotFoundKind      Kind = "not_found"
	AlreadyExistsKind Kind = "already_exists"
	InvalidArgKind    Kind = "invalid_argument"
	AuthKind          Kind = "authentication"
	UnauthorizedKind  Kind = "unauthorized"
	RateLimitedKind   Kind = "rate_limited"
	UnavailableKind   Kind = "unavailable"
	TimeoutKind       Kind = "timeout"
	ConflictKind      Kind = "conflict"
	InternalKind      Kind = "internal"

	// ApiRequestKind covers cloud-backend HTTP responses that don't fit any
	// other kind (4xx other than 401/404/429); non-retryable.
	ApiRequestKind Kind = "api_request"
)

// retryableByDefault records which kinds are retryable absent an explicit
// override on the Error value.
var retryableByDefault = map[Kind]bool{
	RateLimitedKind: true,
	UnavailableKind: true,
	TimeoutKind:     true,
	InternalKind:    true,
}

// Error is the concrete error type every component in this module returns.
type Error struct {
	Kind      Kind
	Message   string
	Cause     error
	Retryable bool
	Context   map[string]string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithContext attaches structured context and returns the same error for
// chaining at the call site.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// New creates an Error of the given kind with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: retryableByDefault[kind]}
}

// Wrap creates an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause, Retryable: retryableByDefault[kind]}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Retryable reports whether err is a *Error marked retryable.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Retryable
}

// KindOf returns err's Kind and true if err is a *Error, or (InternalKind,
// false) otherwise — used by callers that only need to label a metric or
// log field and fall back to InternalKind for an error of unknown shape.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return InternalKind, false
	}
	return e.Kind, true
}

func NotFound(message string) *Error      { return New(NotFoundKind, message) }
func AlreadyExists(message string) *Error { return New(AlreadyExistsKind, message) }
func InvalidArgument(message string) *Error { return New(InvalidArgKind, message) }
func Conflict(message string) *Error      { return New(ConflictKind, message) }
func Unavailable(message string) *Error   { return New(UnavailableKind, message) }
func Internal(message string) *Error      { return New(InternalKind, message) }
func ApiRequest(message string) *Error    { return New(ApiRequestKind, message) }
