package svo

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// Compression selects how a container payload is stored.
type Compression uint8

const (
	CompNone Compression = 0
	CompZlib Compression = 1
	CompZstd Compression = 2
)

// ParseCompression maps a command-line name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompNone, nil
	case "zlib":
		return CompZlib, nil
	case "zstd":
		return CompZstd, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

func (c Compression) String() string {
	switch c {
	case CompNone:
		return "none"
	case CompZlib:
		return "zlib"
	case CompZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// Container (.svob) layout, little endian:
//
//	"SVOB" u8 version u8 compression u8 byteOrder u8 reserved
//	u32 rawLen u64 xxhash64(raw) payload...
//
// byteOrder records how the flattened buffer inside was written: 0 little,
// 1 big.
const (
	containerMagic      = "SVOB"
	containerVersion    = 1
	containerHeaderSize = 20

	orderLittle = 0
	orderBig    = 1
)

// MarshalContainer wraps a flattened buffer written in order.
func MarshalContainer(raw []byte, order binary.ByteOrder, comp Compression) ([]byte, error) {
	var ob uint8
	switch order {
	case binary.LittleEndian:
		ob = orderLittle
	case binary.BigEndian:
		ob = orderBig
	case binary.NativeEndian:
		ob = orderLittle
		if binary.NativeEndian.Uint16([]byte{0, 1}) == 1 {
			ob = orderBig
		}
	default:
		return nil, fmt.Errorf("unsupported byte order %s", order)
	}

	var payload []byte
	switch comp {
	case CompNone:
		payload = raw
	case CompZlib:
		var buf bytes.Buffer
		zw, _ := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		payload = buf.Bytes()
	case CompZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		payload = enc.EncodeAll(raw, nil)
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported compression %d", comp)
	}

	out := make([]byte, 0, containerHeaderSize+len(payload))
	out = append(out, containerMagic...)
	out = append(out, containerVersion, uint8(comp), ob, 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(raw)))
	out = binary.LittleEndian.AppendUint64(out, xxhash.Sum64(raw))
	return append(out, payload...), nil
}

// UnmarshalContainer returns the flattened buffer stored in data and the byte
// order it was written in.
func UnmarshalContainer(data []byte) ([]byte, binary.ByteOrder, error) {
	if len(data) < containerHeaderSize || string(data[:4]) != containerMagic {
		return nil, nil, fmt.Errorf("%w: not an .svob container", ErrMalformed)
	}
	if data[4] != containerVersion {
		return nil, nil, fmt.Errorf("%w: unsupported container version %d", ErrMalformed, data[4])
	}
	var order binary.ByteOrder
	switch data[6] {
	case orderLittle:
		order = binary.LittleEndian
	case orderBig:
		order = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("%w: unknown byte order %d", ErrMalformed, data[6])
	}
	rawLen := binary.LittleEndian.Uint32(data[8:])
	sum := binary.LittleEndian.Uint64(data[12:])
	payload := data[containerHeaderSize:]

	var raw []byte
	switch Compression(data[5]) {
	case CompNone:
		raw = payload
	case CompZlib:
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		defer zr.Close()
		// one byte past rawLen is enough to detect an oversized payload
		raw, err = io.ReadAll(io.LimitReader(zr, int64(rawLen)+1))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case CompZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(max(uint64(rawLen), 1)))
		if err != nil {
			return nil, nil, err
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		return nil, nil, fmt.Errorf("%w: unknown compression %d", ErrMalformed, data[5])
	}

	if uint32(len(raw)) != rawLen {
		return nil, nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrMalformed, len(raw), rawLen)
	}
	if xxhash.Sum64(raw) != sum {
		return nil, nil, fmt.Errorf("%w: checksum mismatch", ErrMalformed)
	}
	return raw, order, nil
}
