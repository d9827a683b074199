package store

import "errors"

var (
	// ErrNotFound is returned when an identity is not present in the store.
	ErrNotFound = errors.New("identity not found")

	// ErrAlreadyExists is returned when creating an identity whose id is taken.
	ErrAlreadyExists = errors.New("identity already exists")

	// ErrDimensionMismatch is returned when an embedding's length does not
	// match the store-wide embedding dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
