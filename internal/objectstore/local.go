package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalStore implements ObjectStore using the local filesystem, with one
// directory per bucket. It is used for testing and development. Version
// identifiers are accepted and ignored: the filesystem holds only the
// current version.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a local filesystem object store.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (l *LocalStore) fullPath(bucket, key string) string {
	return filepath.Join(l.basePath, bucket, filepath.FromSlash(key))
}

// Fetch reads an object from disk. The file modification time stands in
// for the object's last-modified instant.
func (l *LocalStore) Fetch(ctx context.Context, bucket, key, versionID string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := l.fullPath(bucket, key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return &Object{
		Body:         body,
		LastModified: info.ModTime().UTC(),
	}, nil
}

// Put writes an object to disk, creating parent directories as needed.
func (l *LocalStore) Put(ctx context.Context, bucket, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := l.fullPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SetModTime pins an object's modification time. Tests use this to control
// the snapshot as-of instant.
func (l *LocalStore) SetModTime(bucket, key string, when time.Time) error {
	return os.Chtimes(l.fullPath(bucket, key), when, when)
}
