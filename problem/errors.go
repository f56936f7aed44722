package problem

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrencyFailure reports a lost optimistic locking race. It is translated to 409.
	ErrConcurrencyFailure = errors.New("problem: concurrency failure")

	// ErrMessageNotReadable reports a request body that could not be decoded. It is translated to 400.
	ErrMessageNotReadable = errors.New("problem: http message not readable")
)

// ParamError names the request parameter a failed validation belongs to.
// Validation errors wrapped in a ParamError are reported as violations
// instead of field errors.
type ParamError struct {
	Name string
	Err  error
}

// Error returns the parameter name and cause.
func (e *ParamError) Error() string {
	return fmt.Sprintf("problem: invalid parameter %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParamError) Unwrap() error {
	return e.Err
}

// InvalidParam wraps err in a ParamError. It returns nil when err is nil.
func InvalidParam(name string, err error) error {
	if err == nil {
		return nil
	}
	return &ParamError{Name: name, Err: err}
}

// NotReadable wraps a body decoding error so it is translated to 400.
func NotReadable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMessageNotReadable, err)
}
