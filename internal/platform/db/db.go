package db

import (
	"context"
	"fmt"
	"time"

	"github.com/tokenized/gacha/pkg/storage"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

var (
	// ErrInvalidDBProvided is returned in the event that an uninitialized db is
	// used to perform actions against.
	ErrInvalidDBProvided = errors.New("Invalid DB provided")

	// ErrNotFound abstracts the standard not found error.
	ErrNotFound = errors.New("Entity not found")
)

// DB wraps the document storage used for records. The storage is a local
// filesystem for the "standalone" bucket and S3 otherwise.
type DB struct {
	storage storage.Storage
}

// StorageConfig is geared towards "bucket" style storage, where you have a
// specific root (the Bucket).
type StorageConfig struct {
	Region     string
	AccessKey  string
	Secret     string
	Bucket     string
	Root       string
	MaxRetries int
}

// New returns a new DB value for use with document storage.
func New(sc *StorageConfig) (*DB, error) {
	if sc == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "missing storage config")
	}

	storeConfig := storage.NewConfig(sc.Region, sc.AccessKey, sc.Secret, sc.Bucket, sc.Root)
	if sc.MaxRetries > 0 {
		storeConfig.MaxRetries = sc.MaxRetries
	}

	return NewWithStorage(storage.New(storeConfig)), nil
}

// NewWithStorage returns a DB backed by an existing storage.
func NewWithStorage(store storage.Storage) *DB {
	return &DB{
		storage: store,
	}
}

// StatusCheck validates the DB status good.
func (db *DB) StatusCheck(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "platform.DB.StatusCheck")
	defer span.End()

	if db.storage == nil {
		return ErrInvalidDBProvided
	}

	// Generate a random key that is almost certain not to exist.
	uid, _ := uuid.NewRandom()
	ts := time.Now().UnixNano()
	k := fmt.Sprintf("healthcheck/%v/%v", uid, ts)

	// We should receive a "not found" error for a non-existant key.
	if _, err := db.Fetch(ctx, k); err != ErrNotFound {
		return err
	}

	return nil
}

// Close closes a DB value being used.
func (db *DB) Close() {
	db.storage = nil
}

// -------------------------------------------------------------------------
// Storage

// Put something in storage
func (db *DB) Put(ctx context.Context, key string, body []byte) error {
	ctx, span := trace.StartSpan(ctx, "platform.DB.Put")
	defer span.End()

	if db.storage == nil {
		return errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	return db.storage.Write(ctx, key, body, nil)
}

// Fetch something from storage
func (db *DB) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, span := trace.StartSpan(ctx, "platform.DB.Fetch")
	defer span.End()

	if db.storage == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	b, err := db.storage.Read(ctx, key)
	if err != nil {
		if err == storage.ErrNotFound {
			err = ErrNotFound
		}

		return nil, err
	}

	return b, nil
}

// Remove something from storage
func (db *DB) Remove(ctx context.Context, key string) error {
	if db.storage == nil {
		return errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	if err := db.storage.Remove(ctx, key); err != nil {
		if err == storage.ErrNotFound {
			return ErrNotFound
		}
		return err
	}

	return nil
}

// Search for things in storage
func (db *DB) Search(ctx context.Context, keyStart string) ([][]byte, error) {
	ctx, span := trace.StartSpan(ctx, "platform.DB.Search")
	defer span.End()

	if db.storage == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}
	query := map[string]string{
		"path": keyStart,
	}

	return db.storage.Search(ctx, query)
}

// List returns the keys under a given path.
func (db *DB) List(ctx context.Context, key string) ([]string, error) {
	if db.storage == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	return db.storage.List(ctx, key)
}

func (db *DB) Clear(ctx context.Context, keyStart string) error {
	if db.storage == nil {
		return errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	query := map[string]string{
		"path": keyStart,
	}

	return db.storage.Clear(ctx, query)
}
