package hybridmem

import (
	"context"

	"github.com/hupe1980/hybridmem/internal/mem"
	"github.com/hupe1980/hybridmem/internal/registry"
)

// Retain increments the reference count of the tracked object b starts.
// It is a no-op for nil slices, arena memory and unknown memory.
func (m *Manager) Retain(b []byte) {
	addr := mem.Addr(b)
	if addr == 0 {
		return
	}
	if _, ok := m.reg.Retain(addr); !ok {
		m.untrackedOp("retain", addr)
	}
}

// Free decrements the reference count of the tracked object b starts. When
// the count drops to zero the object leaves the registry, its destructor
// runs and its block is returned to the heap source.
//
// Free of nil, arena or unknown memory is a no-op. Arena memory is released
// by destroying the arena.
func (m *Manager) Free(b []byte) {
	addr := mem.Addr(b)
	if addr == 0 {
		return
	}

	obj, _, found := m.reg.Release(addr)
	if !found {
		m.untrackedOp("free", addr)
		return
	}
	if obj == nil {
		return
	}

	m.reclaim(context.Background(), []*registry.Object{obj})
	m.metrics.OnFree(obj.Size)
	m.metrics.OnLiveBytes(m.reg.Stats().LiveBytes)
}

// Release is an alias of Free.
func (m *Manager) Release(b []byte) {
	m.Free(b)
}

// DecRef decrements the reference count of the tracked object b starts
// without reclaiming it; the count stops at zero. Objects left at zero are
// reclaimed by the next Collect. It returns the new count and whether b is
// tracked.
func (m *Manager) DecRef(b []byte) (int, bool) {
	addr := mem.Addr(b)
	if addr == 0 {
		return 0, false
	}

	refs, ok := m.reg.DecRef(addr)
	if !ok {
		m.untrackedOp("decref", addr)
	}
	return refs, ok
}

// SetDestructor installs fn to run exactly once, right before the block of
// the tracked object b starts is released. It reports whether b is tracked.
//
// Destructors run after the registry lock is released and may call back into
// the Manager.
func (m *Manager) SetDestructor(b []byte, fn func([]byte)) bool {
	return m.reg.SetDestructor(mem.Addr(b), fn)
}

// Lookup returns the metadata of the tracked object b starts.
func (m *Manager) Lookup(b []byte) (ObjectInfo, bool) {
	return m.reg.Lookup(mem.Addr(b))
}

// RefCount returns the reference count of the tracked object b starts.
func (m *Manager) RefCount(b []byte) (int, bool) {
	info, ok := m.reg.Lookup(mem.Addr(b))
	return info.Refs, ok
}

// Tracked reports whether b starts a tracked object.
func (m *Manager) Tracked(b []byte) bool {
	_, ok := m.reg.Lookup(mem.Addr(b))
	return ok
}

func (m *Manager) untrackedOp(op string, addr uintptr) {
	m.untracked.Add(1)
	m.logger.LogUntrackedFree(context.Background(), op, addr)
}

// reclaim runs the destructors of objects already unlinked from the registry
// and returns their blocks to the heap source. It must be called without the
// registry lock held.
func (m *Manager) reclaim(ctx context.Context, objs []*registry.Object) {
	for _, obj := range objs {
		m.runDestructor(ctx, obj)

		if err := m.heap.Free(obj.Mem); err != nil {
			m.logger.ErrorContext(ctx, "block release failed",
				"label", obj.Label,
				"size", obj.Size,
				"error", err,
			)
		}
		obj.Mem = nil
	}
}

func (m *Manager) runDestructor(ctx context.Context, obj *registry.Object) {
	fn := obj.Destructor
	if fn == nil {
		return
	}
	obj.Destructor = nil

	defer func() {
		if r := recover(); r != nil {
			m.logger.LogDestructorPanic(ctx, obj.Label, r)
		}
	}()

	fn(obj.Mem)
}
