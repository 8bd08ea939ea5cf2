package helper

import (
	"errors"
	"fmt"
)

// Sentinel errors distinguished by callers with errors.Is.
var (
	// ErrDimensionMismatch is returned when an embedding does not have the
	// configured dimension. It is fatal to the operation that produced it.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidEmbedding is returned when an embedding contains non-finite
	// values (NaN or Inf).
	ErrInvalidEmbedding = errors.New("invalid embedding")
)

// Error wraps an underlying error with the operation that failed.
type Error struct {
	Op  string
	Err error
}

// NewError creates a new operation-wrapping error.
func NewError(op string, err error) error {
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error in %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
