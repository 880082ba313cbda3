package repository

import "errors"

var (
	// ErrNotFound is returned when a requested key doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrWriteFailed is returned when the underlying store rejects a write
	ErrWriteFailed = errors.New("write rejected by store")
)
