// Package errs provides the unified error type used across pgdescribe.
//
// Every subsystem (transport, catalog, describe, filestore, …) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In an adapter — wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "catalog query failed", pgErr)
//
//	// In a caller — check error kind:
//	if errs.IsTypeResolution(err) {
//	    log.Printf("schema changed under us: %v", err)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MinIO, local disk, the TLS stream) map their native
// errors to one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown           ErrKind = iota
	ErrKindNotFound                  // no rows, no object, no bucket
	ErrKindConnectionFailed          // transport or I/O failure
	ErrKindTimeout                   // context deadline / cancellation
	ErrKindQueryFailed               // catalog query or storage operation error
	ErrKindInvalidInput              // bad arguments from the caller
	ErrKindPermissionDenied          // access denied / auth failure
	ErrKindProtocol                  // malformed or unexpected wire message
	ErrKindTypeResolution            // pg_type row missing or type graph is cyclic
	ErrKindPlanParse                 // EXPLAIN output not in the expected shape
	ErrKindMisuse                    // operation attempted in an invalid state
	ErrKindConnectionAborted         // stream lost after a failed TLS upgrade
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindProtocol:
		return "protocol"
	case ErrKindTypeResolution:
		return "type_resolution"
	case ErrKindPlanParse:
		return "plan_parse"
	case ErrKindMisuse:
		return "misuse"
	case ErrKindConnectionAborted:
		return "connection_aborted"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all pgdescribe subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, missing object, unknown bucket, …).
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or I/O failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsTypeResolution reports whether a referenced type could not be resolved.
func IsTypeResolution(err error) bool {
	return KindOf(err) == ErrKindTypeResolution
}

// IsPlanParse reports whether EXPLAIN output could not be interpreted.
func IsPlanParse(err error) bool {
	return KindOf(err) == ErrKindPlanParse
}

// IsMisuse reports whether err was caused by calling into a component in a
// state that does not allow it.
func IsMisuse(err error) bool {
	return KindOf(err) == ErrKindMisuse
}

// IsConnectionAborted reports whether the underlying stream is gone.
func IsConnectionAborted(err error) bool {
	return KindOf(err) == ErrKindConnectionAborted
}

// KindOf extracts the ErrKind from the first *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
