// Package filestore defines the interface for the object stores that hold
// saved describe results.
//
// Providers (local directory, MinIO) implement the Store interface.
// Callers depend only on this package, never on a specific provider package.
//
// Usage:
//
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	data, err := store.Get(ctx, "query-3f2a….json")
package filestore

import (
	"context"
	"time"
)

// Store is the single interface all file storage providers must implement.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// Get returns the full content of the object at key.
	// A missing key is an errs.ErrKindNotFound error.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes data to key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Stat returns metadata for the object at key without reading it.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// List returns every object whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	// Key is the full object path (e.g. "query-3f2a….json").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	// ContentType is the MIME type, when the backend records one.
	ContentType string

	// LastModified is when the object was last written.
	LastModified time.Time
}
