package signups

import "errors"

var (
	ErrInvalidEmail    = errors.New("valid email address required")
	ErrAlreadySignedUp = errors.New("email already registered")
	ErrUnknownTemplate = errors.New("unknown notification template")
)
