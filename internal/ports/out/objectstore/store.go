package objectstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound indicates the object referenced by a URL is not held by the store.
var ErrNotFound = errors.New("object not found")

// Store holds uploaded images and hands back public URLs for them.
type Store interface {
	// Upload stores r under key and returns the public URL of the object.
	Upload(ctx context.Context, key string, contentType string, r io.Reader) (string, error)
	// Remove deletes the object previously returned as url.
	Remove(ctx context.Context, url string) error
}

// ErrInvalidKey indicates a key that is empty or escapes the store root.
var ErrInvalidKey = errors.New("invalid object key")

// CleanKey normalizes key and rejects absolute keys or keys escaping the root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
