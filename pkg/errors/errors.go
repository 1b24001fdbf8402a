// Copyright 2025 TrustWrapper Authors
//
// Package errors defines the whole-verification error taxonomy from the
// error handling design: Backpressure, Timeout, DetectorUnavailable,
// InsufficientConsensus, CommitmentUnavailable, Internal, and InvalidInput.
// Per-task failures (validators, detector rules, explainers) are represented
// as verdicts/evidence with an explicit status instead of these kinds; these
// are reserved for failures that fail the overall verification.
package errors

import (
	"errors"
	"fmt"
)

// Kind names one of the error taxonomy's fixed categories.
type Kind string

const (
	KindBackpressure          Kind = "Backpressure"
	KindTimeout                Kind = "Timeout"
	KindDetectorUnavailable    Kind = "DetectorUnavailable"
	KindInsufficientConsensus  Kind = "InsufficientConsensus"
	KindCommitmentUnavailable  Kind = "CommitmentUnavailable"
	KindInternal               Kind = "Internal"
	KindInvalidInput           Kind = "InvalidInput"
)

// TimeoutScope distinguishes which deadline a Timeout error came from.
type TimeoutScope string

const (
	ScopeValidator TimeoutScope = "Validator"
	ScopePool      TimeoutScope = "Pool"
	ScopeGlobal    TimeoutScope = "Global"
)

// Error is the structured error type returned from the verification
// surface. It carries enough context for callers to branch on Kind without
// string matching.
type Error struct {
	Code    Kind
	Scope   TimeoutScope // only meaningful when Code == KindTimeout
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == KindTimeout && e.Scope != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Code, e.Scope, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given Kind.
func New(code Kind, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error of the given Kind with a formatted message.
func Newf(code Kind, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error of the given Kind wrapping cause.
func Wrap(cause error, code Kind, message string) *Error {
	e := New(code, message)
	e.Cause = cause
	return e
}

// Timeout creates a KindTimeout Error scoped to a particular deadline.
func Timeout(scope TimeoutScope, message string) *Error {
	return &Error{Code: KindTimeout, Scope: scope, Message: message}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, code Kind) bool {
	var twErr *Error
	if errors.As(err, &twErr) {
		return twErr.Code == code
	}
	return false
}
