// Package repofake is an in-memory blobs.Repo for tests.
package repofake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-blob-drive/blobs"
	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
)

type object struct {
	data []byte
	blob blobs.Blob
}

type FakeBlobRepo struct {
	mu       sync.Mutex
	objects  map[string]object
	failWith error
}

var _ blobs.Repo = (*FakeBlobRepo)(nil)

func New() *FakeBlobRepo {
	return &FakeBlobRepo{objects: make(map[string]object)}
}

func (f *FakeBlobRepo) List(_ context.Context) ([]blobs.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	list := make([]blobs.Blob, 0, len(f.objects))
	for _, o := range f.objects {
		list = append(list, o.blob)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (f *FakeBlobRepo) Get(_ context.Context, name string) (io.ReadCloser, blobs.Blob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, blobs.Blob{}, f.failWith
	}
	o, ok := f.objects[name]
	if !ok {
		return nil, blobs.Blob{}, fmt.Errorf("%s: %w", name, apperrors.ErrBlobNotFound)
	}
	return io.NopCloser(bytes.NewReader(o.data)), o.blob, nil
}

func (f *FakeBlobRepo) Put(_ context.Context, name string, data []byte, contentType string, overwrite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, exists := f.objects[name]; exists && !overwrite {
		return fmt.Errorf("%s: %w", name, apperrors.ErrBlobExists)
	}
	f.objects[name] = object{
		data: append([]byte(nil), data...),
		blob: blobs.Blob{
			Name:         name,
			Size:         int64(len(data)),
			ContentType:  contentType,
			LastModified: time.Now().UTC(),
		},
	}
	return nil
}

func (f *FakeBlobRepo) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.objects[name]; !ok {
		return fmt.Errorf("%s: %w", name, apperrors.ErrBlobNotFound)
	}
	delete(f.objects, name)
	return nil
}

func (f *FakeBlobRepo) TemporaryReadURL(name string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	expiry := time.Now().UTC().Add(ttl).Format(time.RFC3339)
	return fmt.Sprintf("https://fake.blob.local/container/%s?sp=r&se=%s", url.PathEscape(name), url.QueryEscape(expiry)), nil
}

// SetFailure makes every operation return err until it is called again with nil.
func (f *FakeBlobRepo) SetFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

// Data returns the stored bytes of name.
func (f *FakeBlobRepo) Data(name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[name]
	return o.data, ok
}
