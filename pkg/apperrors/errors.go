// Package apperrors defines sentinel errors shared across layers.
// Repositories and services return these wrapped; handlers map them
// to HTTP status codes.
package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)
