package tickets

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidEmail    = errors.New("valid email address required")
	ErrNoTickets       = errors.New("no confirmed tickets found for this email address")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrAlreadyCanceled = errors.New("ticket already cancelled")
	ErrNotConfirmed    = errors.New("only confirmed tickets can be resent")
	ErrDeliveryFailed  = errors.New("failed to send tickets email")
	ErrRateLimited     = errors.New("too many requests")
)

// RateLimitError matches ErrRateLimited and tells the client when to retry.
type RateLimitError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%s), retry in %s", e.Scope, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
