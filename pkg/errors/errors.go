// Package errors provides coded error types for the flowsync editor engine.
//
// The engine distinguishes a small taxonomy of non-fatal outcomes (a rejected
// connection, a stale snapshot, a failed layout, a dangling reference) from
// plumbing failures. Each carries a machine-readable [Code] so the bridge can
// forward it to the host and callers can branch with [Is].
//
// # Usage
//
//	err := errors.New(errors.ErrCodeStructuralRejection, "edge %s->%s would close a cycle", a, b)
//	if errors.Is(err, errors.ErrCodeStructuralRejection) {
//	    // leave the graph untouched
//	}
//
//	err := errors.Wrap(errors.ErrCodeLayoutFailure, cause, "layered layout")
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes.
const (
	// Editor taxonomy
	ErrCodeStructuralRejection Code = "STRUCTURAL_REJECTION"
	ErrCodeStaleSnapshot       Code = "STALE_SNAPSHOT"
	ErrCodeLayoutFailure       Code = "LAYOUT_FAILURE"
	ErrCodeMissingReference    Code = "MISSING_REFERENCE"
	ErrCodeDisabled            Code = "DISABLED"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Plumbing
	ErrCodeNetwork  Code = "NETWORK_ERROR"
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// Only the outermost *Error in the chain is consulted.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix for *Error values,
// or the plain error string otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsBenign reports whether err belongs to the part of the taxonomy that is
// expected during normal editing and must never be surfaced as a fault.
func IsBenign(err error) bool {
	switch GetCode(err) {
	case ErrCodeStructuralRejection, ErrCodeStaleSnapshot, ErrCodeMissingReference, ErrCodeDisabled:
		return true
	}
	return false
}
