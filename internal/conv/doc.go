// Package conv provides checked integer conversions.
//
// Sizes travel through the allocator as int (Go slice lengths) but are
// accumulated in uint64 counters and persisted as fixed-width fields in
// snapshots. Conversions that would wrap return an error instead.
package conv
