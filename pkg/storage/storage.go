package storage

import (
	"context"
	"errors"
	"os"
)

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("Object not found")
)

// Storage is the "bucket" style key/value store used for documents.
type Storage interface {
	Write(ctx context.Context, key string, body []byte, options *Options) error
	Read(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error

	// Search returns the objects directly under query["path"].
	Search(ctx context.Context, query map[string]string) ([][]byte, error)

	// List returns the keys directly under path.
	List(ctx context.Context, path string) ([]string, error)

	// Clear removes the objects directly under query["path"].
	Clear(ctx context.Context, query map[string]string) error
}

// Options are applied to a Write.
type Options struct {
	TTL     int64 // seconds, S3 only
	Mode    os.FileMode
	DirMode os.FileMode
}

// NewOptions returns the default write options.
func NewOptions() Options {
	return Options{
		Mode:    0644,
		DirMode: 0755,
	}
}

// New returns filesystem storage for the "standalone" bucket and S3 storage otherwise.
func New(config Config) Storage {
	if config.IsStandalone() {
		return NewFilesystemStorage(config)
	}
	return NewS3Storage(config)
}
