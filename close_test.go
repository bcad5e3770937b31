package hybridmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hybridmem/internal/mem"
)

func TestClose_ReclaimsEverything(t *testing.T) {
	heap := mem.NewOffHeap()
	m := New(WithHeapSource(heap))

	var destroyed int
	for range 10 {
		b := m.Alloc(16, "obj")
		m.Retain(b)
		m.Retain(b)
		m.SetDestructor(b, func([]byte) { destroyed++ })
	}

	a, err := m.NewArena(128)
	require.NoError(t, err)
	require.NoError(t, m.Select(a))

	require.NoError(t, m.Close())

	assert.Equal(t, 10, destroyed)
	assert.Zero(t, heap.Outstanding())
	assert.True(t, a.Destroyed())
	assert.Nil(t, m.Current())

	stats := m.Stats()
	assert.Zero(t, stats.Objects)
	assert.Zero(t, stats.LiveBytes)
	assert.Zero(t, stats.Arenas)
}

func TestClose_Idempotent(t *testing.T) {
	m := New()
	m.Alloc(8, "x")

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}

func TestClose_AfterwardsAllocFails(t *testing.T) {
	m := New()
	x := m.Alloc(8, "x")
	require.NoError(t, m.Close())

	_, err := m.TryAlloc(8, "late")
	require.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, m.Alloc(8, "late"))

	_, err = m.NewArena(64)
	require.ErrorIs(t, err, ErrClosed)

	assert.NotPanics(t, func() {
		m.Free(x)
		m.Retain(x)
		m.Collect()
		_ = m.String()
	})
}

func TestClose_ReportsLeaks(t *testing.T) {
	m := New()

	var survivor []byte
	b := m.Alloc(8, "resurrector")
	m.SetDestructor(b, func([]byte) {
		survivor = m.Alloc(32, "zombie")
	})

	err := m.Close()
	require.Error(t, err)

	var leak *LeakError
	require.ErrorAs(t, err, &leak)
	assert.Equal(t, 1, leak.Objects)
	assert.Equal(t, uint64(32), leak.Bytes)
	require.Len(t, leak.Report.Objects, 1)
	assert.Equal(t, "zombie", leak.Report.Objects[0].Label)
	assert.Contains(t, err.Error(), "1 objects (32 bytes) leaked")
	assert.NotNil(t, survivor)

	assert.Equal(t, err, m.Close())
}
