package svo

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
)

// Voxel stream (.svox) layout, little endian:
//
//	"SVOX" u8 version u8 coordBits u8 materialBits u8 reserved
//	f32 min.x f32 min.y f32 min.z u32 count
//	count records of x,y,z (coordBits each) and material (materialBits),
//	packed LSB-first with no padding between records.
const (
	streamMagic      = "SVOX"
	streamVersion    = 1
	streamHeaderSize = 24
)

// EncodeVoxels writes voxels, in order, as a bit-packed stream. Field widths
// are the smallest that hold the largest coordinate and material.
func EncodeVoxels(min mgl32.Vec3, voxels []Voxel) []byte {
	var hiCoord, hiMat uint16
	for _, v := range voxels {
		hiCoord = max(hiCoord, v.X, v.Y, v.Z)
		hiMat = max(hiMat, v.Material)
	}
	cb := uint8(max(1, bits.Len16(hiCoord)))
	mb := uint8(max(1, bits.Len16(hiMat)))

	buf := make([]byte, 0, streamHeaderSize+(len(voxels)*int(3*cb+mb)+7)/8)
	buf = append(buf, streamMagic...)
	buf = append(buf, streamVersion, cb, mb, 0)
	for _, f := range min {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(voxels)))

	bw := newBitWriter(buf)
	for _, v := range voxels {
		bw.writeBits(uint64(v.X), cb)
		bw.writeBits(uint64(v.Y), cb)
		bw.writeBits(uint64(v.Z), cb)
		bw.writeBits(uint64(v.Material), mb)
	}
	return bw.bytes()
}

// DecodeVoxels parses a stream written by EncodeVoxels.
func DecodeVoxels(data []byte) (mgl32.Vec3, []Voxel, error) {
	var min mgl32.Vec3
	if len(data) < streamHeaderSize || string(data[:4]) != streamMagic {
		return min, nil, fmt.Errorf("%w: not a voxel stream", ErrMalformed)
	}
	if data[4] != streamVersion {
		return min, nil, fmt.Errorf("%w: unsupported voxel stream version %d", ErrMalformed, data[4])
	}
	cb, mb := data[5], data[6]
	if cb < 1 || cb > 16 || mb < 1 || mb > 16 {
		return min, nil, fmt.Errorf("%w: invalid field widths %d/%d", ErrMalformed, cb, mb)
	}
	for i := range min {
		min[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[8+4*i:]))
	}
	count := binary.LittleEndian.Uint32(data[20:])
	payload := data[streamHeaderSize:]
	if need := (uint64(count)*uint64(3*cb+mb) + 7) / 8; uint64(len(payload)) < need {
		return min, nil, fmt.Errorf("%w: %d voxels need %d payload bytes, got %d", ErrMalformed, count, need, len(payload))
	}

	voxels := make([]Voxel, count)
	br := newBitReader(payload)
	for i := range voxels {
		var f [4]uint64
		for j := range f {
			w := cb
			if j == 3 {
				w = mb
			}
			v, err := br.readBits(w)
			if err != nil {
				return min, nil, fmt.Errorf("%w: voxel %d: %v", ErrMalformed, i, err)
			}
			f[j] = v
		}
		voxels[i] = Voxel{X: uint16(f[0]), Y: uint16(f[1]), Z: uint16(f[2]), Material: uint16(f[3])}
	}
	return min, voxels, nil
}
