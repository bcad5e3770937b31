package mmap

import (
	"errors"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned by operations on a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for a non-positive anonymous size.
	ErrInvalidSize = errors.New("mmap: invalid size")
)

// Hint tells the kernel how a mapping will be read.
type Hint int

const (
	HintNormal Hint = iota
	HintSequential
	HintRandom
	HintWillNeed
	// HintDontNeed lets the kernel drop the pages. Anonymous memory reads
	// back as zero afterwards.
	HintDontNeed
)

// Mapping is a mapped region. The zero Mapping is an empty, closed-safe
// mapping of a zero-length file.
type Mapping struct {
	data   []byte
	anon   bool
	closed atomic.Bool
}

// MapAnon returns a private read-write anonymous mapping of size bytes.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, err := sysMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, anon: true}, nil
}

// Open maps the file at path read-only. The file is closed before Open
// returns; the mapping stays valid until Close.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return &Mapping{}, nil
	}

	data, err := sysMapFile(f, int(fi.Size()))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data}, nil
}

// Bytes returns the mapped memory, or nil after Close. Touching a slice
// obtained before Close faults.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the mapping length in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Advise passes h to the kernel. It is a no-op for empty mappings and on
// platforms without madvise.
func (m *Mapping) Advise(h Hint) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return sysAdvise(m.data, h)
}

// Close unmaps the region. Repeated calls return nil.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || len(m.data) == 0 {
		return nil
	}
	return sysUnmap(m.data, m.anon)
}
