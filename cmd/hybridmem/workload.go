package main

import (
	"context"
	"fmt"

	"github.com/hupe1980/hybridmem"
	"github.com/hupe1980/hybridmem/testutil"
)

// workload replays a testutil workload against a manager. Handles returned
// by Alloc are kept until the manager reports them released.
type workload struct {
	m         *hybridmem.Manager
	arenaSize int
	offHeap   bool

	handles     [][]byte
	scratch     int
	collections uint64
}

func (w *workload) run(ctx context.Context, seed int64, n, maxSize int) error {
	ops := testutil.NewRNG(seed).Workload(n, testutil.DefaultMix, maxSize)

	if w.arenaSize <= 0 {
		return w.apply(ctx, ops)
	}

	var arenaOpts []hybridmem.ArenaOption
	if w.offHeap {
		arenaOpts = append(arenaOpts, hybridmem.WithOffHeap())
	}
	a, err := w.m.NewArena(w.arenaSize, arenaOpts...)
	if err != nil {
		return fmt.Errorf("create arena: %w", err)
	}
	defer func() { _ = w.m.DestroyArena(a) }()

	return w.m.WithArenaScope(a, func() error {
		return w.apply(ctx, ops)
	})
}

func (w *workload) apply(ctx context.Context, ops []testutil.Op) error {
	for i, op := range ops {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		switch op.Kind {
		case testutil.OpAlloc:
			b, err := w.m.TryAlloc(op.Size, op.Label)
			if err != nil {
				return fmt.Errorf("op %d: alloc %d bytes: %w", i, op.Size, err)
			}
			if w.m.Tracked(b) {
				w.admit(b)
			} else {
				w.scratch++
			}
		case testutil.OpRetain:
			if b, ok := w.pick(op.Target); ok {
				w.m.Retain(b)
			}
		case testutil.OpFree:
			if b, ok := w.pick(op.Target); ok {
				w.m.Free(b)
				w.forget(op.Target)
			}
		case testutil.OpDecRef:
			if b, ok := w.pick(op.Target); ok {
				w.m.DecRef(b)
			}
		case testutil.OpCollect:
			w.m.Collect()
			w.collections = w.m.Stats().Collections
			w.sweep()
		}
	}
	return nil
}

// admit records the handle of a fresh tracked allocation. An automatic
// collection inside the allocation may have reclaimed held handles, and the
// block source may hand out one of their addresses again, so stale handles
// are dropped first.
func (w *workload) admit(b []byte) {
	if c := w.m.Stats().Collections; c != w.collections {
		w.collections = c
		w.sweep()
	}

	live := w.handles[:0]
	for _, h := range w.handles {
		if &h[0] != &b[0] {
			live = append(live, h)
		}
	}
	clear(w.handles[len(live):])
	w.handles = append(live, b)
}

func (w *workload) pick(target int) ([]byte, bool) {
	if len(w.handles) == 0 {
		return nil, false
	}
	return w.handles[target%len(w.handles)], true
}

// forget drops the handle at target if the manager no longer tracks it.
func (w *workload) forget(target int) {
	i := target % len(w.handles)
	if w.m.Tracked(w.handles[i]) {
		return
	}
	last := len(w.handles) - 1
	w.handles[i] = w.handles[last]
	w.handles = w.handles[:last]
}

// sweep drops every handle reclaimed by a collection.
func (w *workload) sweep() {
	live := w.handles[:0]
	for _, b := range w.handles {
		if w.m.Tracked(b) {
			live = append(live, b)
		}
	}
	clear(w.handles[len(live):])
	w.handles = live
}

func (w *workload) live() int {
	return len(w.handles)
}

// release frees every remaining handle until the manager drops it.
func (w *workload) release() {
	for _, b := range w.handles {
		for w.m.Tracked(b) {
			w.m.Free(b)
		}
	}
	w.handles = nil
}
