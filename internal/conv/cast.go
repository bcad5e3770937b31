package conv

import (
	"fmt"
	"math"
)

// Integer is the set of integer types Checked converts between.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Checked converts v to To, failing when the value does not survive the
// round trip or changes sign.
func Checked[To, From Integer](v From) (To, error) {
	out := To(v)
	if From(out) != v || (v < 0) != (out < 0) {
		var zero To
		return zero, fmt.Errorf("integer overflow: %v cannot be converted to %T", v, zero)
	}
	return out, nil
}

// Uint64 converts a non-negative int to uint64.
func Uint64(v int) (uint64, error) {
	return Checked[uint64](v)
}

// Int converts a uint64 to int.
func Int(v uint64) (int, error) {
	return Checked[int](v)
}

// Uint32 converts an int to uint32.
func Uint32(v int) (uint32, error) {
	return Checked[uint32](v)
}

// SaturatingUint64 converts v to uint64, clamping negatives to zero.
// Counters use it where a negative value would only indicate a bookkeeping
// bug that must not crash the allocator.
func SaturatingUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// SaturatingInt converts v to int, clamping at math.MaxInt.
func SaturatingInt(v uint64) int {
	if v > math.MaxInt {
		return math.MaxInt
	}
	return int(v)
}
