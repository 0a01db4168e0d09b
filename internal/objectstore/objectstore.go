// Package objectstore abstracts the object fetch/put operations the
// pipeline needs. Implementations include S3 and a local filesystem store
// for testing. Fetches are single round-trips: retry is delegated to the
// queue's redelivery mechanism, never performed here.
package objectstore

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound indicates the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Object is a fetched object with the metadata the pipeline consumes.
// LastModified serves as the logical as-of instant for snapshots.
type Object struct {
	Body         []byte
	LastModified time.Time
}

// ObjectStore abstracts object storage access across buckets.
type ObjectStore interface {
	// Fetch retrieves an object, optionally at a specific version
	// (empty versionID means the current version).
	Fetch(ctx context.Context, bucket, key, versionID string) (*Object, error)

	// Put writes an object, replacing any existing content.
	Put(ctx context.Context, bucket, key string, body []byte) error
}
