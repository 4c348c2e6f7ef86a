package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidBlockState = errors.New("invalid block state")
	ErrValidation        = errors.New("validation failed")
)
