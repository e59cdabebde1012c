package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("bad request")

	// Gate errors
	ErrStoreUnavailable  = errors.New("attempt store unavailable")
	ErrUnknownStore      = errors.New("unknown attempt store backend")
	ErrInvalidCredential = errors.New("invalid credentials")
)
