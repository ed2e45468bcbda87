package blobstore

import (
	"context"
	"io"
)

// BlobInfo describes one persisted blob payload.
type BlobInfo struct {
	Key       string
	SizeBytes int64
}

// BlobStore is the byte-storage abstraction used by the case service.
// Put assigns a fresh collision-resistant key and never overwrites.
// Delete of a missing key is a no-op success.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader, originalName string) (BlobInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

var (
	_ BlobStore = (*Local)(nil)
	_ BlobStore = (*S3)(nil)
)
