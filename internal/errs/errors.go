// Package errs provides the unified error type used across ingest.
//
// Every subsystem (database dialects, csv sources, server, …) wraps its
// native errors into *errs.Error before returning them to callers. Callers
// use the Is* predicates to branch on the failure without importing
// driver-specific packages.
//
// Usage:
//
//	// In a dialect, wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "query failed", pgErr)
//
//	// In a caller, check the error kind:
//	if errs.IsEmptyResult(err) {
//	    http.Error(w, "no rows", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
type ErrKind int

const (
	ErrKindUnknown           ErrKind = iota
	ErrKindDependencyMissing         // no driver / backend linked for the request
	ErrKindConnectionFailed          // handle could not be constructed or verified
	ErrKindEmptyResult               // query ran but matched zero rows
	ErrKindQueryFailed               // SQL execution error
	ErrKindInvalidSource             // content is not parseable CSV
	ErrKindFetchFailed               // CSV could not be retrieved
	ErrKindTimeout                   // context deadline / cancellation
	ErrKindInvalidInput              // bad arguments or configuration
	ErrKindNotFound                  // unknown name, missing object
	ErrKindPermissionDenied          // access denied / auth failure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindDependencyMissing:
		return "dependency_missing"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindEmptyResult:
		return "empty_result"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidSource:
		return "invalid_source"
	case ErrKindFetchFailed:
		return "fetch_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all ingest subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original backend error, preserved for logging
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

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsDependencyMissing reports whether the requested driver or backend is not
// available in this build or configuration.
func IsDependencyMissing(err error) bool {
	return KindOf(err) == ErrKindDependencyMissing
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsEmptyResult reports whether a query matched no rows.
func IsEmptyResult(err error) bool {
	return KindOf(err) == ErrKindEmptyResult
}

// IsQueryFailed reports whether err is a SQL execution failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidSource reports whether fetched content was empty or not valid CSV.
func IsInvalidSource(err error) bool {
	return KindOf(err) == ErrKindInvalidSource
}

// IsFetchFailed reports whether a CSV document could not be retrieved.
func IsFetchFailed(err error) bool {
	return KindOf(err) == ErrKindFetchFailed
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsNotFound reports whether err refers to an unknown name.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
