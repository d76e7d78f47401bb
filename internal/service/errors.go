package service

import "errors"

var (
	ErrValidation        = errors.New("invalid order request")
	ErrForbidden         = errors.New("actor is not allowed to access this order")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStoreTimeout      = errors.New("order store timed out, try again")
)
