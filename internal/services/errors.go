package services

import (
	"errors"
	"fmt"

	"travel-backend/internal/store"
)

var (
	ErrNotFound = store.ErrNotFound
	ErrConflict = store.ErrConflict

	// ErrOutsideSessionWindow is returned for free-form messages to a customer
	// who has not written in during the last 24 hours
	ErrOutsideSessionWindow = errors.New("customer is outside the 24-hour session window, send a template instead")

	// ErrDeliveryFailed wraps a provider rejection of a direct message
	ErrDeliveryFailed = errors.New("message delivery failed")
)

// ValidationError is a client mistake in a request; handlers answer it with 400
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// IsValidationError reports whether err is (or wraps) a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
