package simulation

import (
	"errors"
	"fmt"
)

// Synchronous failures surface to the caller wrapped around one of these.
var (
	ErrNotFound     = errors.New("simulation not found")
	ErrConflict     = errors.New("simulation conflict")
	ErrPrecondition = errors.New("simulation precondition failed")
	ErrValidation   = errors.New("invalid simulation request")
)

// Error classes recorded when a detached compute fails.
const (
	ClassInput    = "input"
	ClassEngine   = "engine"
	ClassStore    = "store"
	ClassPanic    = "panic"
	ClassInternal = "internal"
)

// ComputationError is a failure inside the detached compute step. It never
// reaches the submitter; it is logged and recorded as status error.
type ComputationError struct {
	Class string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

func computeErr(class string, err error) error {
	return &ComputationError{Class: class, Err: err}
}

func errorClass(err error) string {
	var ce *ComputationError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassInternal
}
