package mem

import (
	"errors"
	"sync"
)

// ErrInjected is the default error returned by Faulty.
var ErrInjected = errors.New("mem: injected allocation failure")

// Faulty wraps a Source and fails allocations on demand.
type Faulty struct {
	Source Source
	Err    error

	mu        sync.Mutex
	failAfter int // remaining successful allocations, -1 for unlimited
	failSize  map[int]bool
	allocs    int
	frees     int
}

// NewFaulty wraps src (GoHeap if nil). No faults are armed initially.
func NewFaulty(src Source) *Faulty {
	if src == nil {
		src = GoHeap{}
	}
	return &Faulty{
		Source:    src,
		Err:       ErrInjected,
		failAfter: -1,
		failSize:  make(map[int]bool),
	}
}

// FailAfter lets n more allocations succeed, then fails all following ones.
// A negative n disarms the fault.
func (f *Faulty) FailAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAfter = n
}

// FailSize fails every allocation of exactly size bytes.
func (f *Faulty) FailSize(size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSize[size] = true
}

// Alloc implements Source.
func (f *Faulty) Alloc(size int) ([]byte, error) {
	f.mu.Lock()
	if f.failSize[size] || f.failAfter == 0 {
		f.mu.Unlock()
		return nil, f.Err
	}
	if f.failAfter > 0 {
		f.failAfter--
	}
	f.allocs++
	f.mu.Unlock()

	return f.Source.Alloc(size)
}

// Free implements Source.
func (f *Faulty) Free(b []byte) error {
	f.mu.Lock()
	f.frees++
	f.mu.Unlock()
	return f.Source.Free(b)
}

// Counts returns the number of successful allocations and frees.
func (f *Faulty) Counts() (allocs, frees int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allocs, f.frees
}

// Name implements Source.
func (f *Faulty) Name() string { return "faulty(" + f.Source.Name() + ")" }
