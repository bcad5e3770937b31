// Package testutil provides deterministic helpers for tests, benchmarks and
// the synthetic workload of the hybridmem CLI.
//
// This package is intended for use in tests and tooling only.
//
// # Random Allocation Sizes
//
//	rng := testutil.NewRNG(seed)
//	sizes := rng.Sizes(1000, 1, 4096)      // uniform in [1, 4096]
//	skewed := rng.ZipfSizes(1000, 64, 1.5) // heavy tail of small sizes
//
// # Workloads
//
// Workload produces a reproducible sequence of allocator operations. Targets
// are raw random numbers; the consumer maps them onto its current set of live
// handles (usually Target % len(live)).
//
//	ops := rng.Workload(10_000, testutil.DefaultMix, 512)
package testutil
