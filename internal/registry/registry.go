package registry

import (
	"sync"
	"time"

	"github.com/hupe1980/hybridmem/internal/conv"
)

// Stats is a snapshot of the registry counters.
type Stats struct {
	Objects                 int
	LiveBytes               uint64
	PeakBytes               uint64
	Allocations             uint64
	Frees                   uint64
	FreedBytes              uint64
	Collections             uint64
	TotalCollectTime        time.Duration
	AvgCollectTime          time.Duration
	LastCollectFreedObjects int
	LastCollectFreedBytes   uint64
}

// CollectResult describes one mark/sweep pass.
type CollectResult struct {
	Reclaimed  []*Object
	FreedBytes uint64
	Duration   time.Duration
}

// Registry is the ledger of tracked heap allocations.
type Registry struct {
	mu     sync.Mutex
	head   *Object
	tail   *Object
	index  map[uintptr]*Object
	nextID uint64
	now    func() time.Time

	objects          int
	liveBytes        uint64
	peakBytes        uint64
	allocations      uint64
	frees            uint64
	freedBytes       uint64
	collections      uint64
	totalCollectTime time.Duration
	lastFreedObjects int
	lastFreedBytes   uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLinearLookup disables the address index. Lookups then scan the list
// from head to tail and cost O(live objects).
func WithLinearLookup() Option {
	return func(r *Registry) {
		r.index = nil
	}
}

// WithClock overrides the time source used for creation stamps and collection timing.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty registry.
func New(optFns ...Option) *Registry {
	r := &Registry{
		index: make(map[uintptr]*Object),
		now:   time.Now,
	}
	for _, fn := range optFns {
		fn(r)
	}
	return r
}

// Linear reports whether lookups scan the list.
func (r *Registry) Linear() bool {
	return r.index == nil
}

// Insert appends obj to the tail, assigns its ID and creation time, and sets
// its reference count to 1. It returns the live byte total after insertion.
func (r *Registry) Insert(obj *Object) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	obj.ID = r.nextID
	obj.Refs = 1
	obj.Marked = false
	if obj.Created.IsZero() {
		obj.Created = r.now()
	}

	r.link(obj)

	size := conv.SaturatingUint64(int64(obj.Size))
	r.objects++
	r.allocations++
	r.liveBytes += size
	if r.liveBytes > r.peakBytes {
		r.peakBytes = r.liveBytes
	}

	return r.liveBytes
}

// Retain increments the reference count of the object at addr.
func (r *Registry) Retain(addr uintptr) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.find(addr)
	if obj == nil {
		return 0, false
	}
	obj.Refs++
	return obj.Refs, true
}

// Release decrements the reference count of the object at addr. When the
// count drops to zero or below the object is unlinked and returned; the
// caller owns it from then on. found is false for unknown addresses.
func (r *Registry) Release(addr uintptr) (reclaimed *Object, refs int, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.find(addr)
	if obj == nil {
		return nil, 0, false
	}

	obj.Refs--
	if obj.Refs > 0 {
		return nil, obj.Refs, true
	}

	r.remove(obj)
	return obj, obj.Refs, true
}

// DecRef decrements the reference count of the object at addr without
// reclaiming it. The count never drops below zero. Objects left at zero are
// reclaimed by the next Collect.
func (r *Registry) DecRef(addr uintptr) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.find(addr)
	if obj == nil {
		return 0, false
	}
	if obj.Refs > 0 {
		obj.Refs--
	}
	return obj.Refs, true
}

// SetDestructor installs fn on the object at addr, replacing any previous one.
func (r *Registry) SetDestructor(addr uintptr, fn func([]byte)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.find(addr)
	if obj == nil {
		return false
	}
	obj.Destructor = fn
	return true
}

// Lookup returns a copy of the metadata of the object at addr.
func (r *Registry) Lookup(addr uintptr) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.find(addr)
	if obj == nil {
		return Info{}, false
	}
	return obj.info(), true
}

// Collect runs one mark/sweep pass under the lock. Mark flags every object
// with a positive reference count; sweep unlinks the rest, which are returned
// in list order.
func (r *Registry) Collect() CollectResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()

	for obj := r.head; obj != nil; obj = obj.next {
		obj.Marked = obj.Refs > 0
	}

	var res CollectResult
	for obj := r.head; obj != nil; {
		next := obj.next
		if !obj.Marked {
			r.remove(obj)
			res.Reclaimed = append(res.Reclaimed, obj)
			res.FreedBytes += conv.SaturatingUint64(int64(obj.Size))
		} else {
			obj.Marked = false
		}
		obj = next
	}

	res.Duration = r.now().Sub(start)

	r.collections++
	r.totalCollectTime += res.Duration
	r.lastFreedObjects = len(res.Reclaimed)
	r.lastFreedBytes = res.FreedBytes

	return res
}

// ForceZero sets every reference count to zero and returns the number of
// objects affected. Used at shutdown before the final Collect.
func (r *Registry) ForceZero() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for obj := r.head; obj != nil; obj = obj.next {
		obj.Refs = 0
	}
	return r.objects
}

// Stats returns the current counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statsLocked()
}

// Snapshot returns the counters and, if withObjects is set, the metadata of
// every live object in allocation order. Both are taken under one lock hold.
func (r *Registry) Snapshot(withObjects bool) (Stats, []Info) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.statsLocked()
	if !withObjects {
		return stats, nil
	}

	infos := make([]Info, 0, r.objects)
	for obj := r.head; obj != nil; obj = obj.next {
		infos = append(infos, obj.info())
	}
	return stats, infos
}

// Len returns the number of tracked objects.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objects
}

func (r *Registry) statsLocked() Stats {
	s := Stats{
		Objects:                 r.objects,
		LiveBytes:               r.liveBytes,
		PeakBytes:               r.peakBytes,
		Allocations:             r.allocations,
		Frees:                   r.frees,
		FreedBytes:              r.freedBytes,
		Collections:             r.collections,
		TotalCollectTime:        r.totalCollectTime,
		LastCollectFreedObjects: r.lastFreedObjects,
		LastCollectFreedBytes:   r.lastFreedBytes,
	}
	if r.collections > 0 {
		s.AvgCollectTime = r.totalCollectTime / time.Duration(r.collections) //nolint:gosec // collections stays far below MaxInt64
	}
	return s
}

func (r *Registry) find(addr uintptr) *Object {
	if addr == 0 {
		return nil
	}
	if r.index != nil {
		return r.index[addr]
	}
	for obj := r.head; obj != nil; obj = obj.next {
		if obj.Addr() == addr {
			return obj
		}
	}
	return nil
}

func (r *Registry) link(obj *Object) {
	obj.prev = r.tail
	obj.next = nil
	if r.tail != nil {
		r.tail.next = obj
	} else {
		r.head = obj
	}
	r.tail = obj

	if r.index != nil {
		r.index[obj.Addr()] = obj
	}
}

// remove unlinks obj and updates the counters.
func (r *Registry) remove(obj *Object) {
	if obj.prev != nil {
		obj.prev.next = obj.next
	} else {
		r.head = obj.next
	}
	if obj.next != nil {
		obj.next.prev = obj.prev
	} else {
		r.tail = obj.prev
	}
	obj.prev, obj.next = nil, nil

	if r.index != nil {
		delete(r.index, obj.Addr())
	}

	size := conv.SaturatingUint64(int64(obj.Size))
	r.objects--
	r.liveBytes -= size
	r.frees++
	r.freedBytes += size
}
