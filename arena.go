package hybridmem

import (
	"context"

	"github.com/hupe1980/hybridmem/internal/arena"
	"github.com/hupe1980/hybridmem/internal/mem"
)

// ArenaStats holds arena usage counters.
type ArenaStats = arena.Stats

// Arena is a fixed-capacity bump allocator created by Manager.NewArena.
//
// Memory handed out by an arena is never tracked: Free and Retain ignore it,
// and it is released as a whole by Destroy.
type Arena struct {
	m     *Manager
	inner *arena.Arena
}

// NewArena creates an arena with a block of capacity bytes.
// It returns ErrInvalidSize for capacity <= 0 and ErrOutOfMemory if the
// block cannot be allocated.
func (m *Manager) NewArena(capacity int, optFns ...ArenaOption) (*Arena, error) {
	if capacity <= 0 {
		return nil, ErrInvalidSize
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}

	o := arenaOptions{
		name:   arena.DefaultName,
		source: m.opts.arenaSource,
	}
	for _, fn := range optFns {
		fn(&o)
	}

	src := o.source
	if m.rc != nil {
		src = mem.NewBudgeted(src, m.rc)
	}

	arenaOpts := []arena.Option{
		arena.WithName(o.name),
		arena.WithSource(src),
	}
	if m.opts.unsyncArena {
		arenaOpts = append(arenaOpts, arena.WithUnsynchronized())
	}

	inner, err := arena.New(capacity, arenaOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	a := &Arena{m: m, inner: inner}

	m.selMu.Lock()
	m.arenas[a] = struct{}{}
	m.selMu.Unlock()

	m.logger.WithArena(o.name).Debug("arena created", "capacity", capacity, "source", src.Name())

	return a, nil
}

// DestroyArena releases the block of a. The arena is removed from the
// selection stack first, so later allocations use the heap path. Destroying
// an arena twice is a no-op. It never touches the registry.
func (m *Manager) DestroyArena(a *Arena) error {
	if a == nil {
		return nil
	}
	if a.m != m {
		return ErrForeignArena
	}

	m.selMu.Lock()
	m.removeFromStackLocked(a)
	delete(m.arenas, a)
	m.selMu.Unlock()

	if a.inner.Destroyed() {
		return nil
	}

	stats := a.inner.Stats()
	err := a.inner.Destroy()
	m.logger.LogArenaDestroyed(context.Background(), a.Name(), a.Capacity(), stats.HighWater, err)

	return err
}

// Destroy releases the arena block. See Manager.DestroyArena.
func (a *Arena) Destroy() error {
	return a.m.DestroyArena(a)
}

// Destroyed reports whether the arena has been destroyed.
func (a *Arena) Destroyed() bool {
	return a.inner.Destroyed()
}

// Name returns the arena name.
func (a *Arena) Name() string {
	return a.inner.Name()
}

// Capacity returns the block size in bytes.
func (a *Arena) Capacity() int {
	return a.inner.Capacity()
}

// Stats returns the arena counters.
func (a *Arena) Stats() ArenaStats {
	return a.inner.Stats()
}

// Reset rewinds the arena so its block can be reused. Memory handed out
// before must no longer be used.
func (a *Arena) Reset() {
	a.inner.Reset()
}

// Owns reports whether b points into the arena block.
func (a *Arena) Owns(b []byte) bool {
	return a.inner.Owns(b)
}

func (a *Arena) String() string {
	return a.inner.String()
}

// Select makes a the active arena by overwriting the top of the selection
// stack. The previous value is not restored by anything; use PushArena and
// PopArena, WithArenaScope or ContextWithArena for nested use.
// Select(nil) is Deselect.
func (m *Manager) Select(a *Arena) error {
	if a == nil {
		m.Deselect()
		return nil
	}
	if a.m != m {
		return ErrForeignArena
	}

	m.selMu.Lock()
	defer m.selMu.Unlock()

	if n := len(m.stack); n > 0 {
		m.stack[n-1] = a
	} else {
		m.stack = append(m.stack, a)
	}
	return nil
}

// Deselect clears the selection stack. Later allocations use the heap path.
func (m *Manager) Deselect() {
	m.selMu.Lock()
	defer m.selMu.Unlock()

	clear(m.stack)
	m.stack = m.stack[:0]
}

// PushArena makes a the active arena until the matching PopArena.
func (m *Manager) PushArena(a *Arena) error {
	if a == nil || a.m != m {
		return ErrForeignArena
	}

	m.selMu.Lock()
	defer m.selMu.Unlock()

	m.stack = append(m.stack, a)
	return nil
}

// PopArena removes the active arena and restores the previous one.
// It returns the removed arena, or nil if none was active.
func (m *Manager) PopArena() *Arena {
	m.selMu.Lock()
	defer m.selMu.Unlock()

	n := len(m.stack)
	if n == 0 {
		return nil
	}
	a := m.stack[n-1]
	m.stack[n-1] = nil
	m.stack = m.stack[:n-1]
	return a
}

// Current returns the active arena, or nil.
func (m *Manager) Current() *Arena {
	m.selMu.Lock()
	defer m.selMu.Unlock()

	if n := len(m.stack); n > 0 {
		return m.stack[n-1]
	}
	return nil
}

// WithArenaScope runs fn with a as the active arena and restores the previous
// selection on every exit path, including panics.
func (m *Manager) WithArenaScope(a *Arena, fn func() error) error {
	if a == nil || a.m != m {
		return ErrForeignArena
	}

	m.selMu.Lock()
	depth := len(m.stack)
	m.stack = append(m.stack, a)
	m.selMu.Unlock()

	defer m.truncateStack(depth)

	return fn()
}

// truncateStack drops every selection above depth.
func (m *Manager) truncateStack(depth int) {
	m.selMu.Lock()
	defer m.selMu.Unlock()

	if depth < len(m.stack) {
		clear(m.stack[depth:])
		m.stack = m.stack[:depth]
	}
}

func (m *Manager) removeFromStackLocked(a *Arena) {
	kept := m.stack[:0]
	for _, s := range m.stack {
		if s != a {
			kept = append(kept, s)
		}
	}
	clear(m.stack[len(kept):])
	m.stack = kept
}

type arenaContextKey struct{}

// ContextWithArena returns a context that makes AllocContext use a. Inner
// contexts override outer ones and the outer arena applies again once the
// inner context is no longer used.
func ContextWithArena(ctx context.Context, a *Arena) context.Context {
	return context.WithValue(ctx, arenaContextKey{}, a)
}

// ArenaFromContext returns the arena attached to ctx.
func ArenaFromContext(ctx context.Context) (*Arena, bool) {
	a, ok := ctx.Value(arenaContextKey{}).(*Arena)
	return a, ok && a != nil
}

// activeArena returns the context arena if it belongs to m, else the top of
// the selection stack.
func (m *Manager) activeArena(ctx context.Context) *Arena {
	if a, ok := ArenaFromContext(ctx); ok && a.m == m {
		return a
	}
	return m.Current()
}
