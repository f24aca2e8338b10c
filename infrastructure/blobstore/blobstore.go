package blobstore

import (
	"context"
	"fmt"
	"path"

	"graphitti-backend/domain/versioning"

	"gocloud.dev/blob"

	// Drivers for the supported bucket URL schemes: local filesystem,
	// S3-compatible object storage, and in-memory for tests.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Store persists snapshot payloads in a blob bucket. The bucket URL decides
// the backing store, so filesystem and object storage are interchangeable.
type Store struct {
	bucket *blob.Bucket
}

// Open opens the bucket behind the given gocloud URL
func Open(ctx context.Context, bucketURL string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot bucket %s: %w", bucketURL, err)
	}
	return &Store{bucket: bucket}, nil
}

// NewStore wraps an already-open bucket
func NewStore(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Store persists a payload and returns its locator. The key carries the
// snapshot id because version strings have second granularity; without it two
// snapshots of one kind in the same second would overwrite each other.
func (s *Store) Store(ctx context.Context, id, version string, data []byte, kind versioning.SnapshotType) (string, error) {
	key := path.Join(string(kind), version+"_"+id+".json")
	if err := s.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}
	return key, nil
}

// Load fetches a payload by locator
func (s *Store) Load(ctx context.Context, locator string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", locator, err)
	}
	return data, nil
}

// Size returns the stored payload size in bytes
func (s *Store) Size(ctx context.Context, locator string) (int64, error) {
	attrs, err := s.bucket.Attributes(ctx, locator)
	if err != nil {
		return 0, fmt.Errorf("failed to stat snapshot %s: %w", locator, err)
	}
	return attrs.Size, nil
}

// Delete removes a stored payload
func (s *Store) Delete(ctx context.Context, locator string) error {
	if err := s.bucket.Delete(ctx, locator); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", locator, err)
	}
	return nil
}

// Close releases the underlying bucket
func (s *Store) Close() error {
	return s.bucket.Close()
}
