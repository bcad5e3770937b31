// Package resource governs the resources a memory manager may consume.
//
// A Controller provides three independent limits:
//
//   - Memory: a hard byte budget for blocks handed out by a block source.
//     TryAcquireMemory fails fast with ErrMemoryLimitExceeded; the allocator
//     turns that into a nil allocation instead of blocking the caller.
//   - Background: a bounded number of background collection passes.
//   - IO: a token bucket limiting how fast snapshots are exported.
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:     64 << 20,
//	    MaxBackgroundWorkers: 1,
//	    IOLimitBytesPerSec:   8 << 20,
//	})
//
//	if err := rc.TryAcquireMemory(4096); err != nil {
//	    // budget exhausted
//	}
//	defer rc.ReleaseMemory(4096)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops, so
// callers can hold an optional *Controller without nil checks.
package resource
