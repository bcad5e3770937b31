package arena

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/hybridmem/internal/conv"
	"github.com/hupe1980/hybridmem/internal/mem"
)

var (
	// ErrExhausted is returned when a request does not fit in the remaining capacity.
	ErrExhausted = errors.New("arena: exhausted")
	// ErrDestroyed is returned when allocating from a destroyed arena.
	ErrDestroyed = errors.New("arena: destroyed")
	// ErrInvalidCapacity is returned by New for non-positive capacities.
	ErrInvalidCapacity = errors.New("arena: invalid capacity")
)

// Alignment is the granularity every request is rounded up to.
const Alignment = 8

// DefaultName is used when no name is configured.
const DefaultName = "dynamic_arena"

// Stats tracks arena usage.
//
//   - Capacity: size of the block
//   - Offset: bytes currently consumed, including alignment padding
//   - HighWater: largest Offset ever reached (survives Reset)
//   - BytesUsed: bytes requested by successful allocations since the last Reset
//   - BytesWasted: alignment padding since the last Reset
//   - TotalAllocs: successful allocations (historical)
//   - Exhaustions: requests that did not fit (historical)
type Stats struct {
	Capacity    uint64
	Offset      uint64
	HighWater   uint64
	BytesUsed   uint64
	BytesWasted uint64
	TotalAllocs uint64
	Exhaustions uint64
}

// Arena is a fixed-capacity bump allocator over a single block.
type Arena struct {
	name         string
	source       mem.Source
	synchronized bool

	mu          sync.Mutex
	block       []byte
	capacity    int
	offset      int
	highWater   int
	bytesUsed   int
	bytesWasted int
	totalAllocs uint64
	exhaustions uint64
	destroyed   bool
}

type options struct {
	name         string
	source       mem.Source
	synchronized bool
}

// Option is a configuration option for Arena.
type Option func(*options)

// WithName sets the name reported in logs and statistics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithSource sets the block source. Defaults to mem.GoHeap.
func WithSource(src mem.Source) Option {
	return func(o *options) {
		if src != nil {
			o.source = src
		}
	}
}

// WithUnsynchronized removes the arena-local lock from the bump pointer.
// Concurrent allocations then race and may return overlapping memory.
func WithUnsynchronized() Option {
	return func(o *options) {
		o.synchronized = false
	}
}

// New creates an arena with a block of capacity bytes.
func New(capacity int, optFns ...Option) (*Arena, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	o := options{
		name:         DefaultName,
		source:       mem.GoHeap{},
		synchronized: true,
	}
	for _, fn := range optFns {
		fn(&o)
	}

	block, err := o.source.Alloc(capacity)
	if err != nil {
		return nil, fmt.Errorf("arena: allocate %d byte block: %w", capacity, err)
	}

	return &Arena{
		name:         o.name,
		source:       o.source,
		synchronized: o.synchronized,
		block:        block,
		capacity:     capacity,
	}, nil
}

func (a *Arena) lock() {
	if a.synchronized {
		a.mu.Lock()
	}
}

func (a *Arena) unlock() {
	if a.synchronized {
		a.mu.Unlock()
	}
}

// AlignSize rounds size up to Alignment.
func AlignSize(size int) int {
	return (size + Alignment - 1) &^ (Alignment - 1)
}

// Alloc carves size bytes from the block. The returned slice has len and cap
// equal to size and starts at an 8-byte aligned offset. Returns ErrExhausted
// when offset+AlignSize(size) would exceed the capacity.
func (a *Arena) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena: invalid size %d", size)
	}

	a.lock()
	defer a.unlock()

	if a.destroyed {
		return nil, ErrDestroyed
	}

	aligned := AlignSize(size)
	if aligned > a.capacity-a.offset {
		a.exhaustions++
		return nil, ErrExhausted
	}

	start := a.offset
	a.offset += aligned
	if a.offset > a.highWater {
		a.highWater = a.offset
	}
	a.bytesUsed += size
	a.bytesWasted += aligned - size
	a.totalAllocs++

	return a.block[start : start+size : start+size], nil
}

// Owns reports whether b points into this arena's block.
func (a *Arena) Owns(b []byte) bool {
	addr := mem.Addr(b)
	if addr == 0 {
		return false
	}

	a.lock()
	defer a.unlock()

	if a.destroyed {
		return false
	}
	base := mem.Addr(a.block)
	return addr >= base && addr < base+uintptr(a.capacity)
}

// Reset rewinds the offset to zero. All slices handed out before become
// invalid for the caller; HighWater and historical counters are kept.
func (a *Arena) Reset() {
	a.lock()
	defer a.unlock()

	a.offset = 0
	a.bytesUsed = 0
	a.bytesWasted = 0
}

// Destroy returns the block to its source. It is idempotent.
func (a *Arena) Destroy() error {
	a.lock()
	defer a.unlock()

	if a.destroyed {
		return nil
	}
	a.destroyed = true

	block := a.block
	a.block = nil
	a.offset = 0

	return a.source.Free(block)
}

// Destroyed reports whether Destroy has been called.
func (a *Arena) Destroyed() bool {
	a.lock()
	defer a.unlock()
	return a.destroyed
}

// Name returns the arena name.
func (a *Arena) Name() string {
	return a.name
}

// Capacity returns the block size in bytes.
func (a *Arena) Capacity() int {
	return a.capacity
}

// Synchronized reports whether the bump pointer is lock-guarded.
func (a *Arena) Synchronized() bool {
	return a.synchronized
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	a.lock()
	defer a.unlock()

	return Stats{
		Capacity:    conv.SaturatingUint64(int64(a.capacity)),
		Offset:      conv.SaturatingUint64(int64(a.offset)),
		HighWater:   conv.SaturatingUint64(int64(a.highWater)),
		BytesUsed:   conv.SaturatingUint64(int64(a.bytesUsed)),
		BytesWasted: conv.SaturatingUint64(int64(a.bytesWasted)),
		TotalAllocs: a.totalAllocs,
		Exhaustions: a.exhaustions,
	}
}

// Usage returns the consumed share of the block as a percentage.
func (a *Arena) Usage() float64 {
	stats := a.Stats()
	if stats.Capacity == 0 {
		return 0
	}
	return float64(stats.Offset) / float64(stats.Capacity) * 100
}

func (a *Arena) String() string {
	stats := a.Stats()
	return fmt.Sprintf(
		"Arena{name: %s, capacity: %d, used: %d, peak: %d, wasted: %d, usage: %.1f%%, allocs: %d}",
		a.name,
		stats.Capacity,
		stats.Offset,
		stats.HighWater,
		stats.BytesWasted,
		a.Usage(),
		stats.TotalAllocs,
	)
}
