// Package apperr defines the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrBusy is returned when a cycle is already in flight.
	ErrBusy = errors.New("busy")
	// ErrInvalidConfig marks a configuration-integrity failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)
