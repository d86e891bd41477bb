package models

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when a re-parent would make a node its own ancestor.
var ErrCycle = errors.New("node cannot become its own ancestor")

// ValidationError reports a rejected field, either before a request is
// dispatched or when the server refuses the payload.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// CycleError wraps ErrCycle in a ValidationError on the parentId field.
func CycleError(id string, parent ParentID) *ValidationError {
	return &ValidationError{
		Field:   "parentId",
		Message: fmt.Sprintf("moving %s under %s: %v", id, parent, ErrCycle),
		Err:     ErrCycle,
	}
}
