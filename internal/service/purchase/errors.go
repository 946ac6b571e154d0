package purchase

import (
	"errors"
)

var (
	ErrValidation          = errors.New("invalid purchase input")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrCodeExhaustion      = errors.New("could not allocate a unique ticket code")
	ErrTicketCancelled     = errors.New("ticket for this payment was cancelled")
	ErrInvalidWebhook      = errors.New("invalid webhook")
)

// ValidationError carries the per-field messages from input validation.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}
