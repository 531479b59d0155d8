// Package blobs stores the user's files in a single blob container.
package blobs

import (
	"context"
	"io"
	"time"
)

// Blob describes one stored file.
type Blob struct {
	Name         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Repo is the blob container the file manager works on. Implementations return
// apperrors.ErrBlobNotFound for missing names and apperrors.ErrBlobExists when Put
// would overwrite without being asked to.
type Repo interface {
	List(ctx context.Context) ([]Blob, error)
	Get(ctx context.Context, name string) (io.ReadCloser, Blob, error)
	Put(ctx context.Context, name string, data []byte, contentType string, overwrite bool) error
	Delete(ctx context.Context, name string) error
	// TemporaryReadURL returns a URL that grants read access to name for ttl without any other credential.
	TemporaryReadURL(name string, ttl time.Duration) (string, error)
}
