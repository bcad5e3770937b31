package mem

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/hupe1980/hybridmem/internal/mmap"
	"github.com/hupe1980/hybridmem/internal/resource"
)

// Alignment is the byte alignment of every block handed out by a Source.
const Alignment = 8

// ErrUnknownBlock is returned by Free for blocks the source did not hand out.
var ErrUnknownBlock = errors.New("mem: unknown block")

// Source provides raw memory blocks.
type Source interface {
	// Alloc returns a block of exactly size bytes.
	Alloc(size int) ([]byte, error)
	// Free returns a block obtained from Alloc.
	Free(b []byte) error
	// Name identifies the source in logs and reports.
	Name() string
}

// Addr returns the address of the first byte of b, or 0 for an empty slice.
func Addr(b []byte) uintptr {
	if cap(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))) //nolint:gosec // identity only, never dereferenced
}

// AllocAligned allocates a Go heap byte slice of size bytes starting at an
// address divisible by align (a power of two). The underlying array is kept
// alive by the returned slice.
func AllocAligned(size, align int) []byte {
	if size <= 0 {
		return nil
	}

	buf := make([]byte, size+align)
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	offset := (uintptr(align) - (addr & uintptr(align-1))) & uintptr(align-1)

	return buf[offset : offset+uintptr(size) : offset+uintptr(size)]
}

// GoHeap allocates blocks on the Go heap. Free drops nothing itself; the
// block becomes garbage once the caller forgets it.
type GoHeap struct{}

// Alloc implements Source.
func (GoHeap) Alloc(size int) (b []byte, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("mem: invalid size %d", size)
	}
	defer func() {
		// make panics on sizes the runtime cannot satisfy.
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("mem: go heap allocation of %d bytes failed: %v", size, r)
		}
	}()
	return AllocAligned(size, Alignment), nil
}

// Free implements Source.
func (GoHeap) Free([]byte) error { return nil }

// Name implements Source.
func (GoHeap) Name() string { return "go-heap" }

// OffHeap allocates every block as its own anonymous mapping.
// Blocks are page-granular; small requests waste the remainder of a page.
type OffHeap struct {
	mu       sync.Mutex
	mappings map[uintptr]*mmap.Mapping
}

// NewOffHeap creates an off-heap source.
func NewOffHeap() *OffHeap {
	return &OffHeap{mappings: make(map[uintptr]*mmap.Mapping)}
}

// Alloc implements Source.
func (s *OffHeap) Alloc(size int) ([]byte, error) {
	m, err := mmap.MapAnon(size)
	if err != nil {
		return nil, fmt.Errorf("mem: map %d bytes: %w", size, err)
	}

	b := m.Bytes()[:size:size]

	s.mu.Lock()
	s.mappings[Addr(b)] = m
	s.mu.Unlock()

	return b, nil
}

// Free implements Source.
func (s *OffHeap) Free(b []byte) error {
	addr := Addr(b)

	s.mu.Lock()
	m, ok := s.mappings[addr]
	delete(s.mappings, addr)
	s.mu.Unlock()

	if !ok {
		return ErrUnknownBlock
	}
	return m.Close()
}

// Outstanding returns the number of blocks not yet freed.
func (s *OffHeap) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mappings)
}

// Name implements Source.
func (s *OffHeap) Name() string { return "off-heap" }

// Budgeted charges every block against a resource.Controller memory budget.
type Budgeted struct {
	src Source
	rc  *resource.Controller
}

// NewBudgeted wraps src with the memory budget of rc.
func NewBudgeted(src Source, rc *resource.Controller) *Budgeted {
	return &Budgeted{src: src, rc: rc}
}

// Alloc implements Source. It fails fast with resource.ErrMemoryLimitExceeded.
func (s *Budgeted) Alloc(size int) ([]byte, error) {
	if err := s.rc.TryAcquireMemory(int64(size)); err != nil {
		return nil, err
	}
	b, err := s.src.Alloc(size)
	if err != nil {
		s.rc.ReleaseMemory(int64(size))
		return nil, err
	}
	return b, nil
}

// Free implements Source.
func (s *Budgeted) Free(b []byte) error {
	err := s.src.Free(b)
	s.rc.ReleaseMemory(int64(len(b)))
	return err
}

// Name implements Source.
func (s *Budgeted) Name() string { return "budgeted(" + s.src.Name() + ")" }

// Controller returns the budget controller.
func (s *Budgeted) Controller() *resource.Controller { return s.rc }
