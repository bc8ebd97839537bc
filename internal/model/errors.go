package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrSlotUnavailable    = errors.New("time block is not available")
	ErrAlreadyCancelled   = errors.New("reservation is already cancelled")
	ErrCancellationWindow = errors.New("reservation cannot be cancelled this close to the event")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// ValidationError describes a caller-correctable input problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
