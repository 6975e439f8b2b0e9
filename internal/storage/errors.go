package storage

import "errors"

var (
	// ErrNotFound is returned when the requested item does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrConflict is returned when creating an item whose ID is already taken.
	ErrConflict = errors.New("item already exists")
)
