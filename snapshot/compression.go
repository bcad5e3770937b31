package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload compression of an encoded snapshot.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZstd uses Zstandard.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxRawSize), zstd.WithDecoderConcurrency(1))
	return dec
}

// MaxRawSize bounds the uncompressed payload of a snapshot. Headers
// announcing more are rejected before anything is allocated.
const MaxRawSize = 256 << 20

// Upper bounds of the expansion ratio per codec. An LZ4 block cannot expand
// beyond 255:1; zstd frames are bounded generously.
const (
	maxRatioLZ4  = 255
	maxRatioZstd = 1 << 12
)

var (
	errSizeMismatch = errors.New("decompressed size mismatch")
	errSizeTooLarge = errors.New("announced size exceeds limit")
)

// checkRawSize rejects an announced raw size that is larger than MaxRawSize
// or than the payload could expand to under c.
func checkRawSize(c Compression, payload, rawLen int) error {
	if rawLen < 0 || rawLen > MaxRawSize {
		return fmt.Errorf("%w: %d bytes", errSizeTooLarge, rawLen)
	}

	var bound int
	switch c {
	case CompressionNone:
		bound = payload
	case CompressionLZ4:
		bound = payload*maxRatioLZ4 + 16
	case CompressionZstd:
		bound = payload*maxRatioZstd + 1024
	default:
		return fmt.Errorf("unsupported compression %s", c)
	}
	if rawLen > bound {
		return fmt.Errorf("%w: %d bytes from a %d byte %s payload", errSizeTooLarge, rawLen, payload, c)
	}
	return nil
}

// compress returns the compressed payload and the compression actually
// used. Payloads that do not shrink below 90% are stored uncompressed.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(data) == 0 {
		return data, CompressionNone, nil
	}

	var out []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		out = buf[:n]
	case CompressionZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("unsupported compression %s", c)
	}

	if len(out) == 0 || float64(len(out)) > float64(len(data))*0.9 {
		return data, CompressionNone, nil
	}
	return out, c, nil
}

// decompress inflates data to exactly rawLen bytes.
func decompress(data []byte, c Compression, rawLen int) ([]byte, error) {
	if err := checkRawSize(c, len(data), rawLen); err != nil {
		return nil, err
	}

	switch c {
	case CompressionNone:
		if len(data) != rawLen {
			return nil, errSizeMismatch
		}
		return data, nil
	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, errSizeMismatch
		}
		return out, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(data, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
		if len(out) != rawLen {
			return nil, errSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}
