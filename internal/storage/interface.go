package storage

import (
	"context"
	"errors"
)

// Well-known document keys.
const (
	KeyCredentials = "credentials"
	KeyUsageLog    = "usage-log"
)

// Backend persists named JSON documents. The gateway keeps its state in a
// small number of documents (credential list, usage log) and loads them
// whole, so the interface is a blob store rather than a row store.
type Backend interface {
	// Initialize connects and prepares schema or directories.
	Initialize(ctx context.Context) error

	// Load returns the document bytes or *ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save writes the document atomically with respect to Load.
	Save(ctx context.Context, key string, data []byte) error

	// Delete removes the document; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all stored document keys.
	List(ctx context.Context) ([]string, error)

	// Health checks connectivity to the underlying store.
	Health(ctx context.Context) error

	// Close releases connections.
	Close() error
}

// ErrNotFound is returned when a document key is not present.
type ErrNotFound struct {
	Key string
}

func (e *ErrNotFound) Error() string {
	return "document not found: " + e.Key
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
