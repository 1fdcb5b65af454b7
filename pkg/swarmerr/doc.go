// Package swarmerr defines the neutral error-kind taxonomy shared by every
// provider driver, the instance registry, the health monitor, and the
// migration engine.
//
// A driver never returns a backend-specific error type past its own package
// boundary; it wraps the backend error in an *Error with one of the Kinds
// below so callers can branch on Kind (and Retryable) without knowing which
// provider produced it.
package swarmerr
