package hybridmem

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hybridmem/internal/arena"
)

var (
	// ErrInvalidSize is returned for allocation or arena sizes <= 0.
	ErrInvalidSize = errors.New("hybridmem: size must be positive")

	// ErrOutOfMemory is returned when the block source cannot satisfy a request.
	// The underlying cause is available via errors.Unwrap.
	ErrOutOfMemory = errors.New("hybridmem: out of memory")

	// ErrArenaExhausted signals that the active arena cannot fit a request.
	// It only drives routing to the heap path and is never returned by Alloc.
	ErrArenaExhausted = errors.New("hybridmem: arena exhausted")

	// ErrClosed is returned by allocations after Close.
	ErrClosed = errors.New("hybridmem: manager closed")

	// ErrForeignArena is returned when an arena is used with a Manager that did not create it.
	ErrForeignArena = errors.New("hybridmem: arena belongs to another manager")
)

// LeakError reports objects that survived the final collection in Close.
//
// The report taken at shutdown is available in Report.
type LeakError struct {
	Objects int
	Bytes   uint64
	Report  Report
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("hybridmem: %d objects (%d bytes) leaked at shutdown", e.Objects, e.Bytes)
}

// Unwrap returns nil; LeakError is a terminal error.
func (e *LeakError) Unwrap() error { return nil }

// translateError maps errors from internal packages onto the public sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, arena.ErrExhausted), errors.Is(err, arena.ErrDestroyed):
		return fmt.Errorf("%w: %w", ErrArenaExhausted, err)
	case errors.Is(err, arena.ErrInvalidCapacity):
		return fmt.Errorf("%w: %w", ErrInvalidSize, err)
	case errors.Is(err, ErrOutOfMemory):
		return err
	}

	// Block source failures (budget, mmap, injected faults) are all out of memory.
	return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
}
