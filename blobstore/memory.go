package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in a map. It backs tests and dry runs of the
// exporter. Stored slices are never mutated, so open blobs share them.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	bytes int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("blobstore: %s: %w", name, ErrNotFound)
	}
	return NewBytesBlob(data), nil
}

// Create buffers writes and publishes the blob on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWriter{store: m, name: name}, nil
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.store(name, bytes.Clone(data))
	return nil
}

func (m *MemoryStore) store(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += int64(len(data)) - int64(len(m.blobs[name]))
	m.blobs[name] = data
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes -= int64(len(m.blobs[name]))
	delete(m.blobs, name)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Bytes returns the total size of all stored blobs.
func (m *MemoryStore) Bytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes
}

// NewBytesBlob returns a read-only Blob over data. The slice is not copied.
func NewBytesBlob(data []byte) Blob {
	return bytesBlob(data)
}

type bytesBlob []byte

func (b bytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return readAt(b, p, off)
}

func (b bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	end, err := clampRange(off, length, int64(len(b)))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

func (b bytesBlob) Size() int64            { return int64(len(b)) }
func (b bytesBlob) Bytes() ([]byte, error) { return b, nil }
func (bytesBlob) Close() error             { return nil }

type memoryWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
	done  bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Sync() error { return nil }

func (w *memoryWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	w.store.store(w.name, bytes.Clone(w.buf.Bytes()))
	return nil
}

// Abort drops the buffered data without publishing it.
func (w *memoryWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}
