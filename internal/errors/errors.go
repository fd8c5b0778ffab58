package errors

import (
	"errors"
)

// Common error types
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoPrivileges = errors.New("not enough rights")

	// ErrStoreFailure marks any failed persistent store operation.
	ErrStoreFailure = errors.New("store failure")
	// ErrClassifierUnavailable covers missing credentials, timeouts and
	// malformed classifier responses alike.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)
