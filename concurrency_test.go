package hybridmem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hybridmem/internal/mem"
	"github.com/hupe1980/hybridmem/testutil"
)

func TestConcurrent_AllocRetainFree(t *testing.T) {
	m := newTestManager(t)

	const (
		workers = 8
		perG    = 500
	)

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			rng := testutil.NewRNG(int64(w))
			for range perG {
				b := m.Alloc(rng.Size(1, 256), "worker")
				m.Retain(b)
				m.Free(b)
				m.Free(b)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats := m.Stats()
	assert.Zero(t, stats.Objects)
	assert.Zero(t, stats.LiveBytes)
	assert.Equal(t, uint64(workers*perG), stats.Allocations)
	assert.Equal(t, uint64(workers*perG), stats.Frees)
}

func TestConcurrent_CollectWhileMutating(t *testing.T) {
	var destroyed sync.Map
	m := newTestManager(t)

	var g errgroup.Group
	for w := range 4 {
		g.Go(func() error {
			for i := range 300 {
				b := m.Alloc(32, "obj")
				m.SetDestructor(b, func([]byte) {
					if _, dup := destroyed.LoadOrStore([2]int{w, i}, true); dup {
						t.Errorf("destructor ran twice for %d/%d", w, i)
					}
				})
				m.DecRef(b)
			}
			return nil
		})
	}
	g.Go(func() error {
		for range 50 {
			m.Collect()
		}
		return nil
	})
	require.NoError(t, g.Wait())

	m.Collect()

	count := 0
	destroyed.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, 1200, count)
	assert.Zero(t, m.Stats().Objects)
}

func TestConcurrent_SharedArena(t *testing.T) {
	m := newTestManager(t)

	const (
		workers = 8
		perG    = 64
	)

	a, err := m.NewArena(workers * perG * 8)
	require.NoError(t, err)
	require.NoError(t, m.Select(a))

	var (
		mu   sync.Mutex
		seen = make(map[uintptr]struct{})
	)

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for range perG {
				b := m.Alloc(8, "slot")
				mu.Lock()
				seen[mem.Addr(b)] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, seen, workers*perG)
	assert.Zero(t, m.Stats().Objects)
	assert.Equal(t, uint64(workers*perG), m.Stats().ArenaAllocs)
}

func TestConcurrent_SelectAndReport(t *testing.T) {
	m := newTestManager(t)

	a, err := m.NewArena(1 << 16)
	require.NoError(t, err)

	var g errgroup.Group
	g.Go(func() error {
		for range 200 {
			_ = m.Select(a)
			m.Deselect()
		}
		return nil
	})
	g.Go(func() error {
		for range 200 {
			m.Alloc(16, "x")
			_ = m.Report(true)
		}
		return nil
	})
	require.NoError(t, g.Wait())

	stats := m.Stats()
	assert.Equal(t, uint64(200), stats.ArenaAllocs+stats.Allocations)
}
