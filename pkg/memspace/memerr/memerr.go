// Package memerr defines the shared error taxonomy used across the memory
// engine (§7 of the design): validators return structured errors carrying a
// Kind that callers can classify via Recoverable and DataCorruption without
// string-matching messages, mirroring the resilience package's preference
// for typed, inspectable failures over bare strings.
package memerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by what a caller may do about it.
type Kind int

const (
	// KindDimension covers dimension mismatches and malformed shapes.
	KindDimension Kind = iota
	// KindInvalidVector covers NaN/Inf/zero-norm vectors.
	KindInvalidVector
	// KindConstitutionalViolation covers AP-60/AP-77 breaches.
	KindConstitutionalViolation
	// KindInsufficientSpaces covers fewer active spaces than the configured
	// minimum; recoverable by retrying with a looser missing-space policy.
	KindInsufficientSpaces
	// KindQuantizerNotImplemented covers a statically-assigned method with no
	// encoder; fatal for the affected embedder, never falls back to float32.
	KindQuantizerNotImplemented
	// KindIndexNotInitialized covers a search against an index whose health
	// is not Healthy (Failed or Rebuilding).
	KindIndexNotInitialized
	// KindIndexFailed covers an index in the Failed health state.
	KindIndexFailed
	// KindThreshold covers informational threshold/insufficient-neighbor
	// conditions; never implies data corruption.
	KindThreshold
	// KindStorage covers storage/serialization failures.
	KindStorage
	// KindDeadline covers cancellation by a per-request deadline.
	KindDeadline
	// KindCorruption covers NaN/Inf encountered mid-pipeline on data that
	// should have already been validated, or malformed persisted state.
	KindCorruption
)

// Error is the structured error type returned by every validator in the
// memory engine. It is never used to wrap panics raised by corrupt-key
// parsing (those are intentional fail-loud panics, not recoverable errors).
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "quantize", "fingerprint.New"
	Context string // free-form context: embedder name, CF name, key length, etc.
	Err     error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Recoverable reports whether the caller may retry the operation with
// different parameters (e.g. a looser missing-space policy).
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindInsufficientSpaces, KindThreshold, KindDeadline:
		return true
	default:
		return false
	}
}

// DataCorruption reports whether the error indicates persisted or
// in-pipeline state is no longer trustworthy.
func (e *Error) DataCorruption() bool {
	return e.Kind == KindCorruption
}

// New constructs an *Error with the given kind, operation and context.
func New(kind Kind, op, context string) *Error {
	return &Error{Kind: kind, Op: op, Context: context}
}

// Wrap constructs an *Error that also carries a wrapped cause.
func Wrap(kind Kind, op, context string, err error) *Error {
	return &Error{Kind: kind, Op: op, Context: context, Err: err}
}

// DimensionMismatch reports that a vector's length did not match the
// embedder's declared dimension.
func DimensionMismatch(op string, expected, actual int) *Error {
	return New(KindDimension, op, fmt.Sprintf("expected dim %d, got %d", expected, actual))
}

// As is a thin re-export of errors.As for callers that don't want to import
// both packages.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
