// Package backend defines the flat key-value persistence port used by
// durable tracked objects, together with file, in-memory, Badger and
// Postgres implementations. Values are the serialized form of object
// payloads; keys share the tracked object's key namespace.
package backend

import "context"

// Store is the persistence port. Implementations must be safe for
// concurrent use. Absent keys are reported through the boolean return,
// never as an error.
type Store interface {
	// Get returns the serialized value stored under key, and whether the
	// key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores the serialized value under key, overwriting any previous
	// value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the entry under key. Removing an absent key is not
	// an error.
	Remove(ctx context.Context, key string) error

	// ListKeys returns every key currently present in the store.
	ListKeys(ctx context.Context) ([]string, error)
}
