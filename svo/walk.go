package svo

import (
	"iter"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// WalkFunc receives one leaf: the octant indices from the root down to it,
// its minimum corner, edge length and material.
type WalkFunc func(path []uint8, min mgl32.Vec3, scale, material uint16)

// Leaf is a leaf as seen by All.
type Leaf struct {
	Path     []uint8
	Min      mgl32.Vec3
	Scale    uint16
	Material uint16
}

// Volume is the number of unit cells the leaf covers.
func (l Leaf) Volume() uint64 {
	s := uint64(l.Scale)
	return s * s * s
}

// Walk calls fn for every leaf, depth first, children in octant order 0..7.
// Internal nodes are not reported. Each call gets its own copy of path.
func (t *Octree) Walk(fn WalkFunc) {
	for l := range t.All() {
		fn(l.Path, l.Min, l.Scale, l.Material)
	}
}

// All iterates the leaves in the same order as Walk.
func (t *Octree) All() iter.Seq[Leaf] {
	return func(yield func(Leaf) bool) {
		path := make([]uint8, 0, 16)
		walk(t.root, path, yield)
	}
}

func walk(n *node, path []uint8, yield func(Leaf) bool) bool {
	if n.isLeaf() {
		return yield(Leaf{Path: slices.Clone(path), Min: n.min, Scale: n.scale, Material: n.material})
	}
	for i, c := range n.children {
		if !walk(c, append(path, uint8(i)), yield) {
			return false
		}
	}
	return true
}
