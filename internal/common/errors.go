// Package common defines sentinel errors shared by the storage, API and sync
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Validation errors raised before any remote call is made.
	ErrorValidation = errors.New("validation error")

	// ErrNoActiveCredentials is returned by credential providers that have
	// nothing to offer. The rotator reacts to it internally.
	ErrNoActiveCredentials = errors.New("no active credentials")

	// ErrRefreshUnavailable is returned by providers that cannot obtain new
	// credentials on their own.
	ErrRefreshUnavailable = errors.New("credential refresh unavailable")
)
