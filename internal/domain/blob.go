package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver copies old data from the database to cold storage.
type Archiver interface {
	// ArchiveSnapshots copies the snapshots of the UTC day that ends at
	// dayEnd and returns how many rows were written.
	ArchiveSnapshots(ctx context.Context, dayEnd time.Time) (int64, error)
}
