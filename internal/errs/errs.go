// Package errs defines the wire-stable error taxonomy surfaced by the
// storage core (spec.md §7) and the propagation rules between layers.
package errs

import (
	"errors"
	"fmt"
)

// Code is one of the stable error codes listed in spec.md §6.
type Code string

const (
	Ok              Code = "Ok"
	LeaderChanged   Code = "LeaderChanged"
	PartNotFound    Code = "PartNotFound"
	SpaceNotFound   Code = "SpaceNotFound"
	TagNotFound     Code = "TagNotFound"
	EdgeNotFound    Code = "EdgeNotFound"
	SchemaMismatch  Code = "SchemaMismatch"
	IndexConflict   Code = "IndexConflict"
	VidLengthMismatch Code = "VidLengthMismatch"
	Timeout         Code = "Timeout"
	Busy            Code = "Busy"
	Corruption      Code = "Corruption"
	NoSuchFile      Code = "NoSuchFile"
	NoPermission    Code = "NoPermission"
	IllFormat       Code = "IllFormat"
	WrongType       Code = "WrongType"
	EmptyFile       Code = "EmptyFile"
	ItemNotFound    Code = "ItemNotFound"
	InvalidKey      Code = "InvalidKey"
	PartialDelete   Code = "PartialDelete"
	IoError         Code = "IoError"
	DiskFull        Code = "DiskFull"
	CfClosed        Code = "CfClosed"
	Unknown         Code = "Unknown"
)

// Error is the concrete error type carried across package boundaries
// and, ultimately, the RPC surface. It wraps an underlying cause so
// %w-based unwrapping (errors.Is/As) keeps working.
type Error struct {
	Code  Code
	Cause error
	// Hint carries auxiliary data for codes that need it, e.g. the new
	// leader's address for LeaderChanged, or a resume cursor for
	// PartialDelete.
	Hint string
}

func (e *Error) Error() string {
	if e.Cause == nil {
		if e.Hint != "" {
			return fmt.Sprintf("%s: %s", e.Code, e.Hint)
		}
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with the given code and wrapped cause.
func New(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// WithHint attaches Hint and returns the same *Error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Newf builds an Error whose cause is fmt.Errorf(format, args...).
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Cause: fmt.Errorf(format, args...)}
}

// CodeOf extracts the Code from err, or Unknown if err is not (or does
// not wrap) an *Error.
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// IsRetryable reports whether the RPC dispatcher (§4.7) should retry
// the sub-request that produced err automatically, per spec.md §7's
// propagation policy: routing errors (LeaderChanged, PartNotFound),
// Timeout and Busy are always retryable. Only the error code is
// inspected; whether the request was idempotent or partially
// delivered is not considered.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case LeaderChanged, PartNotFound, Timeout, Busy:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err tears down the owning partition (§7).
func IsFatal(err error) bool {
	return CodeOf(err) == Corruption
}
