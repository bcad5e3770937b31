// Package mem provides the block sources the allocator draws raw memory from.
//
// A Source hands out byte blocks and takes them back:
//
//   - GoHeap: blocks allocated on the Go heap, aligned to Alignment
//   - OffHeap: one anonymous mapping per block, returned to the OS on Free
//   - Budgeted: wraps a Source with a resource.Controller memory budget
//   - Faulty: wraps a Source and injects allocation failures (tests)
//
// Sources are safe for concurrent use.
package mem
