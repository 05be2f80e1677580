package ports

import "context"

// Storage is a durable key/value backend that survives process restarts.
// Records are opaque byte slices addressed by name.
type Storage interface {
	// Get returns the record stored under name.
	// Returns domain.ErrNotFound if no record exists.
	Get(ctx context.Context, name string) ([]byte, error)

	// Set stores data under name, replacing any previous record.
	// Implementations should make the write durable before returning.
	Set(ctx context.Context, name string, data []byte) error

	// Remove deletes the record. Removing an absent record is not an error.
	Remove(ctx context.Context, name string) error

	// ListKeys returns the names of all stored records.
	ListKeys(ctx context.Context) ([]string, error)
}
