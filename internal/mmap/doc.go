// Package mmap provides off-heap memory blocks and read-only file mappings.
//
// # Anonymous Blocks
//
// MapAnon creates a private read-write anonymous mapping. The memory lives
// outside the Go heap, so releasing it with Close returns it to the operating
// system immediately instead of waiting for the garbage collector:
//
//	m, err := mmap.MapAnon(1 << 20)
//	if err != nil { ... }
//	defer m.Close()
//
//	block := m.Bytes()
//
// Arena blocks and off-heap tracked allocations are backed by anonymous
// mappings when the off-heap block source is selected.
//
// # File Mappings
//
// Open maps a file read-only. The local blob store uses it to read persisted
// snapshots without copying.
//
// # Platforms
//
// On unix the package uses mmap(2) and madvise(2). On Windows anonymous
// blocks come from VirtualAlloc and files from MapViewOfFile; Advise does
// nothing there.
//
// # Thread Safety
//
// Close is idempotent. No goroutine may touch the bytes after Close returns.
package mmap
