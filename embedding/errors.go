package embedding

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrInvalidDimension is returned when the configured dimension is not positive.
	ErrInvalidDimension = errors.New("dimension must be positive")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
// The offending vector is rejected; the index is unaffected.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrIncompatibleSnapshot indicates that a snapshot cannot be restored
// into the running index. The restore fails; the index keeps its
// current state.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrIncompatibleSnapshot struct {
	Reason string
	cause  error
}

func (e *ErrIncompatibleSnapshot) Error() string {
	return fmt.Sprintf("incompatible snapshot: %s", e.Reason)
}

func (e *ErrIncompatibleSnapshot) Unwrap() error { return e.cause }
