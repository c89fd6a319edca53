// Package archive keeps a cold copy of every published result as JSON,
// on local disk or in an S3-compatible bucket.
package archive

import "context"

// Storage is a flat blob store addressed by slash-separated paths.
type Storage interface {
	// Write stores data at the given path, replacing any previous object
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path. A missing object yields
	// core.ErrResultNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}
