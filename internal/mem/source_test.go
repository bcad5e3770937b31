package mem

import (
	"fmt"
	"testing"

	"github.com/hupe1980/hybridmem/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocAligned(t *testing.T) {
	for _, align := range []int{8, 16, 64} {
		for _, size := range []int{1, 7, 8, 63, 64, 65, 1024} {
			buf := AllocAligned(size, align)
			assert.Len(t, buf, size)
			assert.Equal(t, size, cap(buf))
			assert.Zero(t, Addr(buf)%uintptr(align), "size=%d align=%d", size, align)
		}
	}

	assert.Nil(t, AllocAligned(0, 8))
	assert.Nil(t, AllocAligned(-1, 8))
}

func TestAddr(t *testing.T) {
	assert.Zero(t, Addr(nil))
	b := make([]byte, 16)
	assert.Equal(t, Addr(b), Addr(b[:1]))
	assert.NotEqual(t, Addr(b), Addr(b[8:]))
}

func TestGoHeap(t *testing.T) {
	var src GoHeap
	b, err := src.Alloc(100)
	require.NoError(t, err)
	assert.Len(t, b, 100)
	assert.Zero(t, Addr(b)%Alignment)
	assert.NoError(t, src.Free(b))

	_, err = src.Alloc(0)
	assert.Error(t, err)
	assert.Equal(t, "go-heap", src.Name())
}

func TestOffHeap(t *testing.T) {
	src := NewOffHeap()

	a, err := src.Alloc(100)
	require.NoError(t, err)
	b, err := src.Alloc(5000)
	require.NoError(t, err)

	assert.Len(t, a, 100)
	assert.Len(t, b, 5000)
	assert.Equal(t, 2, src.Outstanding())

	a[0], a[99] = 1, 2
	b[4999] = 3

	require.NoError(t, src.Free(a))
	assert.Equal(t, 1, src.Outstanding())
	assert.ErrorIs(t, src.Free(a), ErrUnknownBlock)
	require.NoError(t, src.Free(b))
	assert.Zero(t, src.Outstanding())
}

func TestBudgeted(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	src := NewBudgeted(GoHeap{}, rc)

	a, err := src.Alloc(60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), rc.MemoryUsage())

	_, err = src.Alloc(50)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, int64(60), rc.MemoryUsage())

	require.NoError(t, src.Free(a))
	assert.Zero(t, rc.MemoryUsage())

	_, err = src.Alloc(100)
	assert.NoError(t, err)
	assert.Equal(t, "budgeted(go-heap)", src.Name())
	assert.Same(t, rc, src.Controller())
}

func TestBudgeted_ReleasesOnInnerFailure(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	inner := NewFaulty(nil)
	inner.FailAfter(0)
	src := NewBudgeted(inner, rc)

	_, err := src.Alloc(10)
	assert.ErrorIs(t, err, ErrInjected)
	assert.Zero(t, rc.MemoryUsage())
}

func TestFaulty(t *testing.T) {
	f := NewFaulty(nil)

	_, err := f.Alloc(8)
	require.NoError(t, err)

	f.FailSize(16)
	_, err = f.Alloc(16)
	assert.ErrorIs(t, err, ErrInjected)
	_, err = f.Alloc(24)
	assert.NoError(t, err)

	f.FailAfter(1)
	_, err = f.Alloc(8)
	assert.NoError(t, err)
	_, err = f.Alloc(8)
	assert.ErrorIs(t, err, ErrInjected)

	f.FailAfter(-1)
	b, err := f.Alloc(8)
	require.NoError(t, err)
	require.NoError(t, f.Free(b))

	allocs, frees := f.Counts()
	assert.Equal(t, 4, allocs)
	assert.Equal(t, 1, frees)
}

func BenchmarkSources(b *testing.B) {
	sources := []Source{GoHeap{}, NewOffHeap()}
	for _, src := range sources {
		for _, size := range []int{64, 4096} {
			b.Run(fmt.Sprintf("%s/size=%d", src.Name(), size), func(b *testing.B) {
				b.ReportAllocs()
				for b.Loop() {
					blk, err := src.Alloc(size)
					if err != nil {
						b.Fatal(err)
					}
					_ = src.Free(blk)
				}
			})
		}
	}
}
