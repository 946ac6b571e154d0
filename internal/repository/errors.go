package repository

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrConflict                  = errors.New("conflict")
	ErrDuplicateCode             = errors.New("duplicate ticket code")
	ErrDuplicatePaymentReference = errors.New("duplicate payment reference")
	ErrNothingToConfirm          = errors.New("nothing to confirm")
	ErrInvalidTransition         = errors.New("status does not allow this change")
)
