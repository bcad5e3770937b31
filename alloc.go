package hybridmem

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/hupe1980/hybridmem/internal/registry"
)

// callerSite returns the file:line skip frames above its caller.
func callerSite(skip int) Site {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Site{}
	}
	return Site{File: filepath.Base(file), Line: line}
}

// Alloc returns size bytes labelled label. The caller's file:line is recorded
// as the allocation site.
//
// If an arena is selected and has room, the memory comes from the arena and
// is not tracked. Otherwise it is allocated from the heap block source and
// registered with a reference count of 1.
//
// Alloc returns nil if size <= 0, if the block source fails or after Close.
// Use TryAlloc to learn the reason.
func (m *Manager) Alloc(size int, label string) []byte {
	b, _ := m.alloc(context.Background(), size, label, callerSite(1))
	return b
}

// TryAlloc is Alloc with the failure reason: ErrInvalidSize, ErrOutOfMemory
// or ErrClosed.
func (m *Manager) TryAlloc(size int, label string) ([]byte, error) {
	return m.alloc(context.Background(), size, label, callerSite(1))
}

// AllocAt is Alloc with an explicit allocation site.
func (m *Manager) AllocAt(size int, label string, site Site) []byte {
	b, _ := m.alloc(context.Background(), size, label, site)
	return b
}

// AllocContext allocates like TryAlloc, but prefers the arena attached to ctx
// by ContextWithArena over the manager's selected arena.
func (m *Manager) AllocContext(ctx context.Context, size int, label string) ([]byte, error) {
	return m.alloc(ctx, size, label, callerSite(1))
}

func (m *Manager) alloc(ctx context.Context, size int, label string, site Site) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}

	if a := m.activeArena(ctx); a != nil {
		if b, err := a.inner.Alloc(size); err == nil {
			m.arenaAllocs.Add(1)
			m.metrics.OnAlloc(size, PathArena)
			return b, nil
		}
		m.arenaExhausted(ctx, a, size)
	}

	return m.allocTracked(ctx, size, label, site)
}

// arenaExhausted records a fallback from a to the heap path.
// Exhaustion warnings are rate limited.
func (m *Manager) arenaExhausted(ctx context.Context, a *Arena, size int) {
	m.arenaFallbacks.Add(1)
	m.metrics.OnArenaExhausted(a.Name(), size)

	if m.warn.Allow() {
		stats := a.inner.Stats()
		m.logger.LogArenaExhausted(ctx, a.Name(), size, stats.Capacity-stats.Offset)
	}
}

func (m *Manager) allocTracked(ctx context.Context, size int, label string, site Site) ([]byte, error) {
	block, err := m.heap.Alloc(size)
	if err != nil {
		err = translateError(err)
		m.logger.LogAlloc(ctx, size, label, site.String(), err)
		return nil, err
	}

	obj := &registry.Object{
		Mem:   block,
		Size:  size,
		Label: label,
		Site:  site,
	}
	live := m.reg.Insert(obj)

	m.metrics.OnAlloc(size, PathHeap)
	m.metrics.OnLiveBytes(live)
	m.logger.LogAlloc(ctx, size, label, site.String(), nil)

	m.maybeAutoCollect(ctx, live)

	return block, nil
}
