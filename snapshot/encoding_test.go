package snapshot

import (
	"encoding/binary"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hybridmem/codec"
	"github.com/hupe1980/hybridmem/testutil"
)

func sampleSnapshot(n int) *Snapshot {
	rng := testutil.NewRNG(42)
	taken := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	s := &Snapshot{
		Seq:     7,
		Taken:   taken,
		Verbose: true,
		Counters: Counters{
			Objects:          n,
			Allocations:      uint64(n),
			Collections:      3,
			TotalCollectTime: 3 * time.Millisecond,
			AvgCollectTime:   time.Millisecond,
		},
		Arena: &Arena{Name: "dynamic_arena", Capacity: 4096, HighWater: 128},
	}

	for i := 0; i < n; i++ {
		size := rng.Size(1, 1024)
		s.Objects = append(s.Objects, Object{
			ID:      uint64(i + 1),
			Addr:    uint64(0x1000 + i*16),
			Size:    size,
			Label:   rng.Label(testutil.WorkloadLabels),
			File:    "main.go",
			Line:    10 + i,
			Created: taken,
			Refs:    1 + rng.Intn(3),
		})
		s.Counters.LiveBytes += uint64(size)
	}
	return s
}

func TestEncodeDecode(t *testing.T) {
	want := sampleSnapshot(200)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		for _, name := range codec.Names() {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				cd, ok := codec.ByName(name)
				require.True(t, ok)

				data, err := Encode(want, EncodeOptions{Codec: cd, Compression: c})
				require.NoError(t, err)

				h, _, err := DecodeHeader(data)
				require.NoError(t, err)
				assert.Equal(t, name, h.Codec)
				assert.Equal(t, c, h.Compression, "repetitive payload must compress")

				got, err := Decode(data)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestCompress_IncompressibleFallsBack(t *testing.T) {
	rng := testutil.NewRNG(1)
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(rng.Uint64())
	}

	for _, c := range []Compression{CompressionLZ4, CompressionZstd} {
		out, used, err := compress(data, c)
		require.NoError(t, err)
		assert.Equal(t, CompressionNone, used, c.String())
		assert.Equal(t, data, out)

		raw, err := decompress(out, used, len(data))
		require.NoError(t, err)
		assert.Equal(t, data, raw)
	}

	_, err := decompress(data, CompressionNone, len(data)+1)
	assert.Error(t, err)
}

func TestDecode_Errors(t *testing.T) {
	data, err := Encode(sampleSnapshot(10), EncodeOptions{Compression: CompressionLZ4})
	require.NoError(t, err)

	t.Run("Truncated", func(t *testing.T) {
		_, err := Decode(data[:5])
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("BadMagic", func(t *testing.T) {
		bad := append([]byte("XXXX"), data[4:]...)
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("Version", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[4] = 99
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("UnknownCodec", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[7] = 'x'
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrUnknownCodec)
	})

	t.Run("FlippedPayload", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0xFF
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

// forgedHeader builds a header that announces rawLen bytes followed by payload.
func forgedHeader(c Compression, rawLen uint32, payload []byte) []byte {
	out := []byte(magic)
	out = append(out, formatVersion, byte(c), 4)
	out = append(out, "json"...)
	out = binary.LittleEndian.AppendUint32(out, rawLen)
	out = binary.LittleEndian.AppendUint32(out, 0)
	return append(out, payload...)
}

func TestDecode_RejectsOversizedRawLength(t *testing.T) {
	tests := []struct {
		name    string
		c       Compression
		rawLen  uint32
		payload []byte
	}{
		{"lz4 above limit", CompressionLZ4, 1 << 30, []byte{0}},
		{"zstd above limit", CompressionZstd, 1 << 31, []byte{0}},
		{"lz4 beyond ratio", CompressionLZ4, 1 << 20, []byte{1, 2, 3, 4, 5}},
		{"zstd beyond ratio", CompressionZstd, 64 << 20, []byte{1, 2, 3, 4, 5}},
		{"none larger than payload", CompressionNone, 100, []byte("short")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := forgedHeader(tt.c, tt.rawLen, tt.payload)

			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := Decode(data)
			runtime.ReadMemStats(&after)

			require.ErrorIs(t, err, ErrCorrupt)
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20), "announced size must not be allocated")
		})
	}
}

func TestCheckRawSize(t *testing.T) {
	assert.NoError(t, checkRawSize(CompressionNone, 10, 10))
	assert.NoError(t, checkRawSize(CompressionLZ4, 10, 2000))
	assert.NoError(t, checkRawSize(CompressionZstd, 100, 200_000))
	assert.ErrorIs(t, checkRawSize(CompressionZstd, MaxRawSize, MaxRawSize+1), errSizeTooLarge)
	assert.Error(t, checkRawSize(Compression(9), 10, 1))
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, got)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
	assert.Equal(t, "Compression(9)", Compression(9).String())
}
