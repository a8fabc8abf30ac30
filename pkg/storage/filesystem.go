package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemStorage implements the Storage interface for interacting with
// the local filesystem.
type FilesystemStorage struct {
	Config Config
}

// NewFilesystemStorage implements the Storage interface for simple S3 like
// file system interactions.
func NewFilesystemStorage(config Config) FilesystemStorage {
	return FilesystemStorage{
		Config: config,
	}
}

// Write writes the data to the key, creating parent directories as needed.
func (f FilesystemStorage) Write(ctx context.Context,
	key string,
	body []byte,
	options *Options) error {

	// make sure that the Options argument is valid
	if options == nil {
		opts := NewOptions()
		options = &opts
	}

	filename := f.buildPath(key)

	// make sure directory exists.
	dir := path.Dir(filepath.ToSlash(filename))

	if err := f.ensureExists(filepath.FromSlash(dir), options); err != nil {
		return err
	}

	var mode os.FileMode = 0644

	if options.Mode != 0 {
		mode = options.Mode
	}

	// Write to a temp file first so a reader never sees a partial document.
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, body, mode); err != nil {
		return err
	}

	return os.Rename(tmp, filename)
}

// Read reads the data from a file on the local filesystem.
func (f FilesystemStorage) Read(ctx context.Context,
	key string) ([]byte, error) {

	filename := f.buildPath(key)

	// check for existence of file
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, ErrNotFound
	}

	return os.ReadFile(filename)
}

// Remove removes the file stored at key.
func (f FilesystemStorage) Remove(ctx context.Context, key string) error {
	filename := f.buildPath(key)

	if err := os.Remove(filename); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}

	return nil
}

// Search returns all objects in the store, from a given path.
//
// The path can be empty.
func (f FilesystemStorage) Search(ctx context.Context,
	query map[string]string) ([][]byte, error) {

	keys, err := f.List(ctx, query["path"])
	if err != nil {
		return nil, err
	}

	objects := [][]byte{}

	for _, key := range keys {
		b, err := f.Read(ctx, key)
		if err != nil {
			return nil, err
		}

		objects = append(objects, b)
	}

	return objects, nil
}

// List returns the keys of the files directly under path, sorted by name.
func (f FilesystemStorage) List(ctx context.Context, p string) ([]string, error) {
	p = strings.TrimSuffix(p, "/")

	dir := f.buildPath(p)

	if err := f.ensureExists(dir, nil); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}

		if len(p) == 0 {
			keys = append(keys, entry.Name())
		} else {
			keys = append(keys, strings.Join([]string{p, entry.Name()}, "/"))
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Clear removes all files directly under query["path"].
func (f FilesystemStorage) Clear(ctx context.Context, query map[string]string) error {
	keys, err := f.List(ctx, query["path"])
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := f.Remove(ctx, key); err != nil && err != ErrNotFound {
			return err
		}
	}

	return nil
}

func (f FilesystemStorage) buildPath(key string) string {
	parts := []string{
		f.Config.Root,
		f.Config.Bucket,
	}

	if len(key) > 0 {
		parts = append(parts, key)
	}

	s := strings.Join(parts, "/")

	return filepath.FromSlash(s)
}

func (f FilesystemStorage) ensureExists(dir string, options *Options) error {
	if options == nil {
		opts := NewOptions()
		options = &opts
	}

	mode := options.DirMode
	if mode == 0 {
		mode = 0755
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, mode); err != nil {
			return err
		}
	}

	return nil
}
