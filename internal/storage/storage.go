package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo is the metadata for one remote object.
type ObjectInfo struct {
	Name         string
	Size         int64
	ContentType  string
	ETag         string
	CreatedAt    time.Time
	LastModified time.Time
	Metadata     map[string]string
	URL          string
	VersionID    string
}

// BlobStore captures the minimal object-storage operations the pipeline needs.
// Authentication and connection handling live behind the implementation.
type BlobStore interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
}
