package repository

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrInvalidReorder is returned when a reorder request does not name
	// every rule exactly once
	ErrInvalidReorder = errors.New("invalid reorder")
)
