package svo

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Flattened buffer layout. Every record is a multiple of 16 bytes so the
// arrays can be bound directly as GPU storage.
//
//	header: u32 parent_count, u32 leaf_count, u32 scale, u32 pad, vec4 min
//	parent: f32 min.x, f32 min.y, f32 min.z, u32 scale, u32 children[8]
//	leaf:   f32 min.x, f32 min.y, f32 min.z, u16 material, u16 scale
//
// A child index below parent_count refers to the parent array; any other
// index refers to leaves[index-parent_count].
const (
	HeaderSize = 32
	ParentSize = 48
	LeafSize   = 16
)

// Flatten serializes the tree in host byte order.
func (t *Octree) Flatten() []byte {
	return t.FlattenOrder(binary.NativeEndian)
}

// FlattenOrder serializes the tree using the given byte order.
func (t *Octree) FlattenOrder(order binary.AppendByteOrder) []byte {
	g := gather(t.root)
	pc := uint32(len(g.parents))

	buf := make([]byte, 0, HeaderSize+ParentSize*len(g.parents)+LeafSize*len(g.leaves))
	buf = order.AppendUint32(buf, pc)
	buf = order.AppendUint32(buf, uint32(len(g.leaves)))
	buf = order.AppendUint32(buf, uint32(t.root.scale))
	buf = order.AppendUint32(buf, 0)
	buf = appendVec3(order, buf, t.root.min)
	buf = appendFloat(order, buf, 0)

	for _, p := range g.parents {
		buf = appendVec3(order, buf, p.min)
		buf = order.AppendUint32(buf, uint32(p.scale))
		for _, c := range p.children {
			var idx uint32
			if c.isLeaf() {
				idx = pc + g.leafIndex[c]
			} else {
				idx = g.parentIndex[c]
			}
			buf = order.AppendUint32(buf, idx)
		}
	}
	for _, l := range g.leaves {
		buf = appendVec3(order, buf, l.min)
		buf = order.AppendUint16(buf, l.material)
		buf = order.AppendUint16(buf, l.scale)
	}
	return buf
}

type gathered struct {
	parents     []*node
	leaves      []*node
	parentIndex map[*node]uint32
	leafIndex   map[*node]uint32
}

// gather numbers parents and leaves separately in pre-order.
func gather(root *node) *gathered {
	g := &gathered{parentIndex: map[*node]uint32{}, leafIndex: map[*node]uint32{}}
	var visit func(n *node)
	visit = func(n *node) {
		if n.isLeaf() {
			g.leafIndex[n] = uint32(len(g.leaves))
			g.leaves = append(g.leaves, n)
			return
		}
		g.parentIndex[n] = uint32(len(g.parents))
		g.parents = append(g.parents, n)
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(root)
	return g
}

func appendFloat(order binary.AppendByteOrder, buf []byte, f float32) []byte {
	return order.AppendUint32(buf, math.Float32bits(f))
}

func appendVec3(order binary.AppendByteOrder, buf []byte, v mgl32.Vec3) []byte {
	buf = appendFloat(order, buf, v[0])
	buf = appendFloat(order, buf, v[1])
	return appendFloat(order, buf, v[2])
}
