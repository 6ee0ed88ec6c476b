package rowstore

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("row not found")

	// ErrAlreadyExists indicates a row already exists with the provided ID.
	ErrAlreadyExists = errors.New("row already exists")
)
