package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/hybridmem/codec"
	"github.com/hupe1980/hybridmem/internal/conv"
	"github.com/klauspost/crc32"
)

// Format:
//
//	[magic "HMSN"][version u8][compression u8][codec len u8][codec name]
//	[raw len u32][raw crc32 u32][payload]
//
// Integers are little endian. The checksum covers the uncompressed payload.
const (
	magic         = "HMSN"
	formatVersion = 1
	fixedHeader   = len(magic) + 3
)

var (
	// ErrBadMagic is returned when data is not an encoded snapshot.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrUnsupportedVersion is returned for snapshots from a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported format version")
	// ErrCorrupt is returned for truncated data or a checksum mismatch.
	ErrCorrupt = errors.New("snapshot: corrupt data")
	// ErrUnknownCodec is returned when the header names a codec that is not
	// available.
	ErrUnknownCodec = errors.New("snapshot: unknown codec")
)

// EncodeOptions control Encode.
type EncodeOptions struct {
	// Codec marshals the snapshot. Default: codec.Default.
	Codec codec.Codec
	// Compression compresses the payload. Default: CompressionNone.
	Compression Compression
}

// Encode serializes s.
func Encode(s *Snapshot, opts EncodeOptions) ([]byte, error) {
	c := opts.Codec
	if c == nil {
		c = codec.Default
	}

	name := c.Name()
	if len(name) == 0 || len(name) > 255 {
		return nil, fmt.Errorf("snapshot: invalid codec name %q", name)
	}

	raw, err := c.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	if len(raw) > MaxRawSize {
		return nil, fmt.Errorf("snapshot: payload of %d bytes exceeds %d", len(raw), MaxRawSize)
	}
	rawLen, err := conv.Uint32(len(raw))
	if err != nil {
		return nil, fmt.Errorf("snapshot: payload too large: %w", err)
	}

	payload, used, err := compress(raw, opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("snapshot: compress: %w", err)
	}

	out := make([]byte, 0, fixedHeader+len(name)+8+len(payload))
	out = append(out, magic...)
	out = append(out, formatVersion, byte(used), byte(len(name)))
	out = append(out, name...)
	out = binary.LittleEndian.AppendUint32(out, rawLen)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(raw))
	out = append(out, payload...)
	return out, nil
}

// Header is the decoded snapshot header.
type Header struct {
	Version     uint8
	Compression Compression
	Codec       string
	RawSize     int
}

// DecodeHeader parses the header and returns it with the payload offset.
func DecodeHeader(data []byte) (Header, int, error) {
	if len(data) < fixedHeader {
		return Header{}, 0, ErrCorrupt
	}
	if string(data[:len(magic)]) != magic {
		return Header{}, 0, ErrBadMagic
	}

	h := Header{
		Version:     data[4],
		Compression: Compression(data[5]),
	}
	if h.Version != formatVersion {
		return Header{}, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	off := fixedHeader
	nameLen := int(data[6])
	if len(data) < off+nameLen+8 {
		return Header{}, 0, ErrCorrupt
	}
	h.Codec = string(data[off : off+nameLen])
	off += nameLen

	h.RawSize = int(binary.LittleEndian.Uint32(data[off:]))
	off += 4

	return h, off, nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*Snapshot, error) {
	h, off, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(h.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, h.Codec)
	}

	sum := binary.LittleEndian.Uint32(data[off:])
	off += 4

	raw, err := decompress(data[off:], h.Compression, h.RawSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if crc32.ChecksumIEEE(raw) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var s Snapshot
	if err := c.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return &s, nil
}
