package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing immutable blobs such as allocator
// snapshots. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible
	// when the writer is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader for up to length bytes starting at off.
	// Offsets past the end return io.EOF.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
	io.Closer
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered data to the backing store.
	Sync() error
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll reads a whole blob. Mappable blobs are copied without an
// intermediate reader.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	blob, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	if m, ok := blob.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return bytes.Clone(data), nil
	}

	size := blob.Size()
	if size == 0 {
		return []byte{}, nil
	}

	r, err := blob.ReadRange(ctx, 0, size)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}
	return data, nil
}

// IsNotFound reports whether err means a blob does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// clampRange validates off and returns the end of [off, off+length) within size.
func clampRange(off, length, size int64) (int64, error) {
	if off < 0 || off > size {
		return 0, io.EOF
	}
	end := off + length
	if length < 0 || end > size {
		end = size
	}
	return end, nil
}

// readAt copies from data at off into p with io.ReaderAt semantics.
func readAt(data []byte, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
