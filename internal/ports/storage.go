package ports

// Package ports defines interfaces (hexagonal ports) for session persistence and navigation.
// Implementations live in internal/adapters and internal/navigation; orchestration in internal/service.

import (
	"context"
	"errors"
)

// ErrStorageUnavailable is returned by adapters whose backing store cannot be reached.
var ErrStorageUnavailable = errors.New("storage unavailable")

// KeyValueStore is the durable string storage the session layer persists into.
// It mirrors browser local storage: flat string keys, string values.
type KeyValueStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
