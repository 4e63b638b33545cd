package svo

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

// MaxScale is the largest power-of-two edge length a 16-bit scale can hold.
const MaxScale = 1 << 15

var (
	// ErrOutOfBounds is returned when a coordinate falls outside [0, scale).
	ErrOutOfBounds = errors.New("svo: voxel out of bounds")
	// ErrScaleOverflow is returned when the voxel extents need a scale above MaxScale.
	ErrScaleOverflow = errors.New("svo: voxel extents exceed maximum scale")
)

// Octree is a sparse voxel octree rooted at one cube of edge Scale().
//
// Construction, Insert and Collapse mutate the tree and must not overlap with
// any other call. Once built, the read operations (Walk, All, Flatten,
// MaterialAt, Stats, Mesh, Fingerprint) may run concurrently.
type Octree struct {
	root   *node
	logger logrus.FieldLogger
}

// Option configures an Octree.
type Option func(*Octree)

// WithLogger sets the logger used for split and collapse diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Octree) { t.logger = l }
}

// New builds a tree at min containing voxels, then collapses uniform subtrees.
// The cube edge is the smallest power of two that contains every coordinate.
func New(min mgl32.Vec3, voxels []Voxel, opts ...Option) (*Octree, error) {
	scale, err := ScaleFor(voxels)
	if err != nil {
		return nil, err
	}
	t := &Octree{root: newLeaf(min, scale, 0), logger: logrus.StandardLogger()}
	for _, o := range opts {
		o(t)
	}
	for _, v := range voxels {
		t.insert(&t.root, [3]uint32{}, v)
	}
	n := t.Collapse()
	t.logger.WithFields(logrus.Fields{"voxels": len(voxels), "scale": scale, "collapsed": n}).Debug("octree built")
	return t, nil
}

// ScaleFor returns the smallest power of two strictly greater than the largest
// coordinate in voxels, or 1 for an empty list.
func ScaleFor(voxels []Voxel) (uint16, error) {
	var hi uint16
	for _, v := range voxels {
		hi = max(hi, v.X, v.Y, v.Z)
	}
	if hi >= MaxScale {
		return 0, fmt.Errorf("%w: coordinate %d needs scale %d", ErrScaleOverflow, hi, 1<<bits.Len16(hi))
	}
	// 1<<Len(hi) is the smallest power of two > hi; hi == 0 gives 1.
	return uint16(1) << bits.Len16(hi), nil
}

// Scale is the edge length of the root cube.
func (t *Octree) Scale() uint16 { return t.root.scale }

// Min is the minimum corner of the root cube.
func (t *Octree) Min() mgl32.Vec3 { return t.root.min }

// Insert sets the material of the unit cell at v, splitting coarser leaves on
// the way down. It does not collapse; call Collapse after a batch of inserts.
func (t *Octree) Insert(v Voxel) error {
	if err := t.checkBounds(v.X, v.Y, v.Z); err != nil {
		return err
	}
	t.insert(&t.root, [3]uint32{}, v)
	return nil
}

func (t *Octree) checkBounds(x, y, z uint16) error {
	s := t.root.scale
	if x >= s || y >= s || z >= s {
		return fmt.Errorf("%w: (%d,%d,%d) with scale %d", ErrOutOfBounds, x, y, z, s)
	}
	return nil
}

// insert descends from the node held in slot, whose integer origin relative
// to the root is o. slot is either &t.root or &parent.children[i], so a split
// replaces the node the same way in both cases.
func (t *Octree) insert(slot **node, o [3]uint32, v Voxel) {
	n := *slot
	if n.isLeaf() {
		if n.scale == 1 {
			n.material = v.Material
			return
		}
		n = split(n)
		*slot = n
	}
	i := octantIndex(o, n.scale, v)
	t.insert(&n.children[i], childOrigin(o, n.scale, i), v)
}

// Collapse replaces every internal node whose children are leaves of one
// material with a single leaf, bottom-up, so merges cascade within one pass.
// It returns the number of nodes collapsed.
func (t *Octree) Collapse() int {
	return t.collapse(&t.root)
}

func (t *Octree) collapse(slot **node) int {
	n := *slot
	if n.isLeaf() {
		return 0
	}
	count := 0
	for i := range n.children {
		count += t.collapse(&n.children[i])
	}
	if m, ok := n.homogeneous(); ok {
		t.logger.WithFields(logrus.Fields{
			"min":      n.min,
			"scale":    n.scale,
			"material": m,
		}).Debug("collapsing node")
		*slot = newLeaf(n.min, n.scale, m)
		count++
	}
	return count
}

// MaterialAt returns the material of the leaf containing (x, y, z) and that
// leaf's scale.
func (t *Octree) MaterialAt(x, y, z uint16) (material, scale uint16, err error) {
	if err := t.checkBounds(x, y, z); err != nil {
		return 0, 0, err
	}
	v := Voxel{X: x, Y: y, Z: z}
	n, o := t.root, [3]uint32{}
	for !n.isLeaf() {
		i := octantIndex(o, n.scale, v)
		o = childOrigin(o, n.scale, i)
		n = n.children[i]
	}
	return n.material, n.scale, nil
}

// Stats summarises the shape of a tree.
type Stats struct {
	Parents int
	Leaves  int
	Depth   int // levels below the root; 0 for a single leaf
}

// Stats counts parents and leaves and measures depth.
func (t *Octree) Stats() Stats {
	var s Stats
	var visit func(n *node, depth int)
	visit = func(n *node, depth int) {
		s.Depth = max(s.Depth, depth)
		if n.isLeaf() {
			s.Leaves++
			return
		}
		s.Parents++
		for _, c := range n.children {
			visit(c, depth+1)
		}
	}
	visit(t.root, 0)
	return s
}
