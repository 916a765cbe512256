package domain

import "fmt"

// InvalidInputError normalizes an unexpected fault inside the step update
// path into one user-facing error kind, keeping the original cause for
// diagnostics.
type InvalidInputError struct {
	Cause error
}

// InvalidInput wraps cause as an InvalidInputError.
func InvalidInput(cause error) *InvalidInputError {
	return &InvalidInputError{Cause: cause}
}

func (e *InvalidInputError) Error() string {
	if e == nil || e.Cause == nil {
		return "invalid input format"
	}
	return fmt.Sprintf("invalid input format: %v", e.Cause)
}

// Unwrap exposes the original cause to errors.Is and errors.As.
func (e *InvalidInputError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
