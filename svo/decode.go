package svo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrMalformed is returned when a buffer, stream or container does not parse.
var ErrMalformed = errors.New("svo: malformed data")

// Header is the fixed prefix of a flattened buffer.
type Header struct {
	ParentCount uint32
	LeafCount   uint32
	Scale       uint32
	Min         mgl32.Vec3
}

// ParentRecord is one entry of the parent array.
type ParentRecord struct {
	Min      mgl32.Vec3
	Scale    uint32
	Children [8]uint32
}

// LeafRecord is one entry of the leaf array.
type LeafRecord struct {
	Min      mgl32.Vec3
	Material uint16
	Scale    uint16
}

// Flat is a decoded flattened buffer.
type Flat struct {
	Header
	Parents []ParentRecord
	Leaves  []LeafRecord
}

// Decode parses a buffer produced by Flatten or FlattenOrder.
func Decode(buf []byte, order binary.ByteOrder) (*Flat, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: buffer of %d bytes is shorter than the header", ErrMalformed, len(buf))
	}
	f := &Flat{}
	f.ParentCount = order.Uint32(buf[0:])
	f.LeafCount = order.Uint32(buf[4:])
	f.Scale = order.Uint32(buf[8:])
	f.Min = readVec3(order, buf[16:])

	want := uint64(HeaderSize) + uint64(f.ParentCount)*ParentSize + uint64(f.LeafCount)*LeafSize
	if uint64(len(buf)) != want {
		return nil, fmt.Errorf("%w: %d parents and %d leaves need %d bytes, got %d",
			ErrMalformed, f.ParentCount, f.LeafCount, want, len(buf))
	}

	f.Parents = make([]ParentRecord, f.ParentCount)
	p := buf[HeaderSize:]
	for i := range f.Parents {
		r := &f.Parents[i]
		r.Min = readVec3(order, p)
		r.Scale = order.Uint32(p[12:])
		for c := range r.Children {
			r.Children[c] = order.Uint32(p[16+4*c:])
		}
		p = p[ParentSize:]
	}
	f.Leaves = make([]LeafRecord, f.LeafCount)
	for i := range f.Leaves {
		f.Leaves[i] = LeafRecord{
			Min:      readVec3(order, p),
			Material: order.Uint16(p[12:]),
			Scale:    order.Uint16(p[14:]),
		}
		p = p[LeafSize:]
	}
	return f, nil
}

func readVec3(order binary.ByteOrder, b []byte) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(order.Uint32(b[0:])),
		math.Float32frombits(order.Uint32(b[4:])),
		math.Float32frombits(order.Uint32(b[8:])),
	}
}

// Resolve maps a global child index to its parent or leaf record. Exactly one
// of the returned records is non-nil when err is nil.
func (f *Flat) Resolve(index uint32) (*ParentRecord, *LeafRecord, error) {
	if index < f.ParentCount {
		return &f.Parents[index], nil, nil
	}
	li := uint64(index) - uint64(f.ParentCount)
	if li >= uint64(f.LeafCount) {
		return nil, nil, fmt.Errorf("%w: child index %d out of range", ErrMalformed, index)
	}
	return nil, &f.Leaves[li], nil
}

// Validate walks the tree from the root and checks that every child index
// resolves, that every node is reached exactly once, that each child sits in
// its octant at half the parent's scale, and that scales are powers of two
// with no parent below scale 2. A buffer that passes cannot make a traversal
// loop.
func (f *Flat) Validate() error {
	if f.Scale == 0 || f.Scale&(f.Scale-1) != 0 || f.Scale > MaxScale {
		return fmt.Errorf("%w: root scale %d is not a power of two in [1, %d]", ErrMalformed, f.Scale, MaxScale)
	}
	if f.ParentCount == 0 {
		if f.LeafCount != 1 {
			return fmt.Errorf("%w: tree without parents must have one leaf, has %d", ErrMalformed, f.LeafCount)
		}
		if uint32(f.Leaves[0].Scale) != f.Scale || f.Leaves[0].Min != f.Min {
			return fmt.Errorf("%w: root leaf does not match header", ErrMalformed)
		}
		return nil
	}
	if f.Parents[0].Scale != f.Scale || f.Parents[0].Min != f.Min {
		return fmt.Errorf("%w: root parent does not match header", ErrMalformed)
	}

	seen := make([]bool, uint64(f.ParentCount)+uint64(f.LeafCount))
	seen[0] = true
	stack := []uint32{0}
	for len(stack) > 0 {
		pi := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p := &f.Parents[pi]
		if p.Scale < 2 {
			return fmt.Errorf("%w: parent %d has scale %d", ErrMalformed, pi, p.Scale)
		}
		half := p.Scale / 2
		for i, idx := range p.Children {
			cp, cl, err := f.Resolve(idx)
			if err != nil {
				return fmt.Errorf("parent %d child %d: %w", pi, i, err)
			}
			if seen[idx] {
				return fmt.Errorf("%w: node %d referenced twice", ErrMalformed, idx)
			}
			seen[idx] = true
			var min mgl32.Vec3
			var scale uint32
			if cp != nil {
				min, scale = cp.Min, cp.Scale
				stack = append(stack, idx)
			} else {
				min, scale = cl.Min, uint32(cl.Scale)
			}
			if scale != half || min != p.Min.Add(octantOffset(i).Mul(float32(half))) {
				return fmt.Errorf("%w: parent %d child %d is not octant %d", ErrMalformed, pi, i, i)
			}
		}
	}
	for idx, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: node %d is unreachable from the root", ErrMalformed, idx)
		}
	}
	return nil
}
