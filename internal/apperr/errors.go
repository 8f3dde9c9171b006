package apperr

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
)
