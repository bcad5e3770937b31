package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint64(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := Uint64(0)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0), got)
	})

	t.Run("valid max", func(t *testing.T) {
		got, err := Uint64(math.MaxInt)
		assert.NoError(t, err)
		assert.Equal(t, uint64(math.MaxInt), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := Uint64(-1)
		assert.Error(t, err)
	})
}

func TestInt(t *testing.T) {
	got, err := Int(42)
	assert.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Int(math.MaxUint64)
	assert.Error(t, err)
}

func TestUint32(t *testing.T) {
	got, err := Uint32(math.MaxUint32)
	assert.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), got)

	_, err = Uint32(-5)
	assert.Error(t, err)

	_, err = Uint32(math.MaxUint32 + 1)
	assert.Error(t, err)
}

func TestChecked_Narrowing(t *testing.T) {
	_, err := Checked[int8](int64(128))
	assert.Error(t, err)

	v, err := Checked[int8](int64(-128))
	assert.NoError(t, err)
	assert.Equal(t, int8(-128), v)
}

func TestSaturating(t *testing.T) {
	assert.Equal(t, uint64(0), SaturatingUint64(-10))
	assert.Equal(t, uint64(10), SaturatingUint64(10))
	assert.Equal(t, math.MaxInt, SaturatingInt(math.MaxUint64))
	assert.Equal(t, 7, SaturatingInt(7))
}
