// Package arena provides a fixed-capacity bump-pointer allocator.
//
// # Memory Model
//
// An Arena owns exactly one contiguous block obtained from a mem.Source.
// Allocations are carved from the block by advancing an offset; every request
// is rounded up to Alignment bytes so returned slices start 8-byte aligned.
// Individual allocations are never released: the whole block is returned to
// its source by Destroy, or rewound for reuse by Reset.
//
// When a request does not fit, Alloc returns ErrExhausted and leaves the arena
// untouched. Callers fall back to another allocation path.
//
// # Concurrency Model
//
// By default the bump pointer is guarded by an arena-local mutex, so several
// goroutines may allocate from the same arena. WithUnsynchronized removes the
// lock: concurrent Alloc calls then race on the offset and may hand out
// overlapping memory. Use it only when a single goroutine owns the arena.
//
// Destroy and Reset must not race with users of previously returned slices.
package arena
