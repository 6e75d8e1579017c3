// Package store keeps the entities of the CRUD API. Entities are opaque
// blobs grouped by resource name and identified by a numeric id unique within
// their resource.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no entity has the requested id.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidName is returned for resource names that cannot be stored.
	ErrInvalidName = errors.New("invalid resource name")
)

// Store is safe for concurrent use.
type Store interface {
	// Create stores data under a fresh id and returns it. Ids start at 1
	// and are never handed out twice for the same resource.
	Create(ctx context.Context, resource string, data []byte) (uint64, error)
	Get(ctx context.Context, resource string, id uint64) ([]byte, error)
	// Put creates or replaces the entity with the given id.
	Put(ctx context.Context, resource string, id uint64, data []byte) error
	Delete(ctx context.Context, resource string, id uint64) error
	// List returns the ids of a resource in ascending order.
	List(ctx context.Context, resource string) ([]uint64, error)
	Close() error
}

const (
	BackendFS     = "fs"
	BackendBadger = "badger"
)

// Open returns the store for backend rooted at dir. An empty backend means
// BackendFS.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFS:
		return NewFileStore(dir)
	case BackendBadger:
		return OpenBadgerStore(dir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// ValidateName checks resource is a single non-empty path segment.
func ValidateName(resource string) error {
	if resource == "" || resource == "." || resource == ".." ||
		strings.ContainsAny(resource, "/\\\x00") ||
		strings.HasPrefix(resource, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, resource)
	}
	return nil
}
