// SPDX-License-Identifier: MIT
//
// Package errs defines the failure taxonomy shared by the transform plan, the
// voice extractor and the host boundary. Callers match on kinds with
// errors.Is against the exported sentinels:
//
//	if errors.Is(err, errs.ErrInvalidArgument) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	InvalidArgument   Kind = iota + 1 // malformed size, length mismatch, nil buffer
	IllegalState                      // operation on an invalid or destroyed handle
	AllocationFailure                 // buffers could not be allocated
	TransformFailure                  // the transform primitive failed
)

// String returns a human readable name for the kind.
func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case IllegalState:
		return "illegal state"
	case AllocationFailure:
		return "allocation failure"
	case TransformFailure:
		return "transform failure"
	default:
		return "unknown"
	}
}

// Sentinels, one per kind. An *Error matches the sentinel of its kind.
var (
	ErrInvalidArgument   = &Error{Kind: InvalidArgument}
	ErrIllegalState      = &Error{Kind: IllegalState}
	ErrAllocationFailure = &Error{Kind: AllocationFailure}
	ErrTransformFailure  = &Error{Kind: TransformFailure}
)

// Error carries the kind, the operation that failed and a message naming the
// violated precondition.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. Only the kind is
// compared so that sentinels match any error of their class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around a cause.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
