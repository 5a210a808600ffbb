// Package media persists uploaded moment bytes and hands out reference strings.
package media

import (
	"context"
	"errors"
	"io"
)

// Store errors.
var (
	ErrNotManaged = errors.New("reference is not store-managed")
	ErrNotFound   = errors.New("media not found")
	ErrTooLarge   = errors.New("media exceeds maximum size")
)

// Store persists binary content and returns a stable reference string.
type Store interface {
	// Save writes the bytes and returns the reference to store as content.
	Save(ctx context.Context, filename string, body io.Reader) (string, error)
	// Delete removes the bytes behind a store-managed reference.
	// Deleting an already missing file is not an error.
	Delete(ctx context.Context, ref string) error
	// Open returns the bytes behind a store-managed reference.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// IsManaged reports whether ref points at bytes owned by this store.
	IsManaged(ref string) bool
}
