package svo

import "github.com/go-gl/mathgl/mgl32"

// Voxel is a single unit cell. X, Y and Z are relative to the tree origin.
type Voxel struct {
	X, Y, Z  uint16
	Material uint16
}

// node is a cubical region of the volume. A nil children array marks a leaf;
// an internal node always has all 8 slots set.
type node struct {
	min      mgl32.Vec3
	scale    uint16
	material uint16 // leaves only
	children *[8]*node
}

func newLeaf(min mgl32.Vec3, scale, material uint16) *node {
	return &node{min: min, scale: scale, material: material}
}

func (n *node) isLeaf() bool { return n.children == nil }

// homogeneous reports whether all children are leaves carrying the same
// material, and returns that material.
func (n *node) homogeneous() (uint16, bool) {
	if n.isLeaf() {
		return 0, false
	}
	m := n.children[0].material
	for _, c := range n.children {
		if !c.isLeaf() || c.material != m {
			return 0, false
		}
	}
	return m, true
}

// split returns an internal node covering the leaf's region whose 8 children
// inherit the leaf's material.
func split(leaf *node) *node {
	half := leaf.scale / 2
	var kids [8]*node
	for i := range kids {
		kids[i] = newLeaf(leaf.min.Add(octantOffset(i).Mul(float32(half))), half, leaf.material)
	}
	return &node{min: leaf.min, scale: leaf.scale, children: &kids}
}

// octantOffset maps an octant index to its unit offset: bit0 x, bit1 y, bit2 z.
func octantOffset(i int) mgl32.Vec3 {
	return mgl32.Vec3{float32(i & 1), float32((i >> 1) & 1), float32((i >> 2) & 1)}
}

// octantIndex picks the child of a node at local origin o with the given scale
// that contains v.
func octantIndex(o [3]uint32, scale uint16, v Voxel) int {
	half := uint32(scale / 2)
	i := 0
	if uint32(v.X)-o[0] >= half {
		i |= 1
	}
	if uint32(v.Y)-o[1] >= half {
		i |= 2
	}
	if uint32(v.Z)-o[2] >= half {
		i |= 4
	}
	return i
}

// childOrigin returns the integer local origin of octant i.
func childOrigin(o [3]uint32, scale uint16, i int) [3]uint32 {
	half := uint32(scale / 2)
	return [3]uint32{
		o[0] + half*uint32(i&1),
		o[1] + half*uint32((i>>1)&1),
		o[2] + half*uint32((i>>2)&1),
	}
}
