// Package common holds the sentinel errors shared by the store, the services
// and the HTTP handlers. Callers match them with errors.Is.
package common

import "errors"

var (
	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Repository errors
	ErrNotFound = errors.New("not found")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)
