package svo

import "io"

// bitWriter appends fixed-width fields to a byte slice, low bit first, so a
// voxel record can straddle byte boundaries without padding.
type bitWriter struct {
	buf     []byte
	pending uint64 // bits not yet flushed, aligned at bit 0
	width   uint8  // number of valid bits in pending
}

func newBitWriter(buf []byte) *bitWriter { return &bitWriter{buf: buf} }

// writeBits appends the low n bits of v. n is at most 16 for stream fields.
func (w *bitWriter) writeBits(v uint64, n uint8) {
	w.pending |= (v & (1<<n - 1)) << w.width
	w.width += n
	for ; w.width >= 8; w.width -= 8 {
		w.buf = append(w.buf, byte(w.pending))
		w.pending >>= 8
	}
}

// bytes pads the last partial byte with zeros and returns the buffer.
func (w *bitWriter) bytes() []byte {
	if w.width > 0 {
		w.buf = append(w.buf, byte(w.pending))
		w.pending, w.width = 0, 0
	}
	return w.buf
}

// bitReader reads back fields written by bitWriter. It refills one byte at a
// time and reports io.ErrUnexpectedEOF when a field runs past the input.
type bitReader struct {
	src     []byte
	pending uint64
	width   uint8
}

func newBitReader(src []byte) *bitReader { return &bitReader{src: src} }

func (r *bitReader) readBits(n uint8) (uint64, error) {
	for r.width < n {
		if len(r.src) == 0 {
			return 0, io.ErrUnexpectedEOF
		}
		r.pending |= uint64(r.src[0]) << r.width
		r.src = r.src[1:]
		r.width += 8
	}
	v := r.pending & (1<<n - 1)
	r.pending >>= n
	r.width -= n
	return v, nil
}
