package testutil

import (
	"math/rand/v2"
	"sync"
)

// RNG is a seeded, goroutine-safe source of test data. Two RNGs with the
// same seed produce the same sequence.
type RNG struct {
	mu   sync.Mutex
	seed uint64
	pcg  *rand.PCG
	r    *rand.Rand
}

// NewRNG returns an RNG seeded with seed.
func NewRNG(seed int64) *RNG {
	pcg := rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15) //nolint:gosec // deterministic test data
	return &RNG{seed: uint64(seed), pcg: pcg, r: rand.New(pcg)}       //nolint:gosec // deterministic test data
}

// Reset rewinds the RNG to the start of its sequence.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pcg.Seed(r.seed, r.seed^0x9e3779b97f4a7c15)
}

// Seed returns the seed passed to NewRNG.
func (r *RNG) Seed() int64 {
	return int64(r.seed) //nolint:gosec // round trip of the original seed
}

// Intn returns a value in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}

// Uint64 returns a random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Uint64()
}

// Size returns a size in [minSize, maxSize]. A degenerate range yields
// minSize.
func (r *RNG) Size(minSize, maxSize int) int {
	if maxSize <= minSize {
		return minSize
	}
	return minSize + r.Intn(maxSize-minSize+1)
}

// Sizes returns n values of Size(minSize, maxSize).
func (r *RNG) Sizes(n, minSize, maxSize int) []int {
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = r.Size(minSize, maxSize)
	}
	return sizes
}

// ZipfSizes returns n multiples of 8 in [8, 8*classes] drawn from a Zipf
// distribution with exponent s (s > 1). Small sizes dominate, as in real
// object mixes.
func (r *RNG) ZipfSizes(n, classes int, s float64) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sizes := make([]int, n)
	if classes <= 1 {
		for i := range sizes {
			sizes[i] = 8
		}
		return sizes
	}

	z := rand.NewZipf(r.r, s, 1, uint64(classes-1)) //nolint:gosec // classes > 1
	for i := range sizes {
		sizes[i] = int(z.Uint64()+1) * 8 //nolint:gosec // bounded by classes
	}
	return sizes
}

// Label picks one of labels uniformly, or "" if labels is empty.
func (r *RNG) Label(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[r.Intn(len(labels))]
}
