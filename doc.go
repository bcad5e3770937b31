// Package hybridmem provides a hybrid memory manager for Go programs that
// manage byte buffers explicitly.
//
// It combines two allocation strategies behind one entry point:
//
//   - A registry of reference-counted heap allocations. Every allocation
//     records its size, a type label, the allocation site and a reference
//     count starting at 1.
//   - Bump-pointer arenas. While an arena is active, allocations are carved
//     from its block and bypass the registry entirely. The whole block is
//     released at once when the arena is destroyed.
//
// # Quick Start
//
//	m := hybridmem.New()
//	defer m.Close()
//
//	buf := m.Alloc(128, "buffer")
//	m.Retain(buf)  // refs: 2
//	m.Free(buf)    // refs: 1
//	m.Free(buf)    // released
//
// # Arenas
//
//	a, _ := m.NewArena(64 << 10, hybridmem.WithArenaName("request"))
//	defer a.Destroy()
//
//	_ = m.WithArenaScope(a, func() error {
//	    tmp := m.Alloc(256, "scratch") // from the arena, untracked
//	    _ = tmp
//	    return nil
//	})
//
// When the active arena cannot fit a request, the allocation falls back to
// the tracked heap path and a rate-limited warning is logged.
//
// Select overwrites the active arena without remembering the previous one.
// PushArena/PopArena, WithArenaScope and ContextWithArena support nested use.
//
// # Collection
//
// Collect is a reference-count filter, not a tracing collector. It removes
// every tracked object whose count is zero or below and keeps the rest; no
// roots are scanned. Counts reach zero without immediate release through
// DecRef. Automatic collection above a live byte threshold is available via
// WithAutoCollect and WithAutoCollectBackground.
//
// Destructors set with SetDestructor run exactly once, after the registry
// lock has been released, so they may call back into the Manager.
//
// # Reporting
//
//	m.Report(true).WriteTo(os.Stdout)
//
// Package snapshot encodes reports for storage in a blobstore and diffs them
// to find leaked objects.
//
// # Shutdown
//
// Close forces all reference counts to zero, runs a final collection and
// returns a *LeakError if objects survive.
package hybridmem
