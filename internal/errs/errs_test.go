// SPDX-License-Identifier: MIT
package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesSentinelOfSameKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"invalid/invalid", New(InvalidArgument, "op", "bad"), ErrInvalidArgument, true},
		{"invalid/state", New(InvalidArgument, "op", "bad"), ErrIllegalState, false},
		{"state/state", New(IllegalState, "op", "closed"), ErrIllegalState, true},
		{"alloc/alloc", New(AllocationFailure, "op", "oom"), ErrAllocationFailure, true},
		{"transform/transform", New(TransformFailure, "op", "boom"), ErrTransformFailure, true},
		{"wrapped", fmt.Errorf("outer: %w", New(IllegalState, "op", "x")), ErrIllegalState, true},
		{"plain", errors.New("plain"), ErrInvalidArgument, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.sentinel); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.sentinel, got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(InvalidArgument, "fft.NewPlan", "size must be a power of 2, got %d", 100)
	want := "fft.NewPlan: invalid argument: size must be a power of 2, got 100"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := errors.New("runtime panic")
	wrapped := Wrap(TransformFailure, "fft.Forward", cause, "primitive failed")
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if KindOf(wrapped) != TransformFailure {
		t.Errorf("KindOf() = %v, want %v", KindOf(wrapped), TransformFailure)
	}
	if KindOf(cause) != 0 {
		t.Errorf("KindOf(plain) = %v, want 0", KindOf(cause))
	}
}
