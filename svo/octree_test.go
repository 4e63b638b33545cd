package svo

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// checkerboard fills an n³ cube with alternating materials 1 and 2 so that no
// subtree is uniform.
func checkerboard(n uint16) []Voxel {
	var vs []Voxel
	for z := uint16(0); z < n; z++ {
		for y := uint16(0); y < n; y++ {
			for x := uint16(0); x < n; x++ {
				vs = append(vs, Voxel{X: x, Y: y, Z: z, Material: 1 + (x+y+z)%2})
			}
		}
	}
	return vs
}

func randomVoxels(r *rand.Rand, n int, size, materials int) []Voxel {
	vs := make([]Voxel, n)
	for i := range vs {
		vs[i] = Voxel{
			X:        uint16(r.Intn(size)),
			Y:        uint16(r.Intn(size)),
			Z:        uint16(r.Intn(size)),
			Material: uint16(r.Intn(materials)),
		}
	}
	return vs
}

func mustNew(t *testing.T, min mgl32.Vec3, vs []Voxel) *Octree {
	t.Helper()
	tree, err := New(min, vs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tree
}

func TestScaleFor(t *testing.T) {
	tests := []struct {
		name   string
		voxels []Voxel
		want   uint16
	}{
		{"empty", nil, 1},
		{"origin only", []Voxel{{0, 0, 0, 7}}, 1},
		{"max 1", []Voxel{{1, 0, 0, 1}}, 2},
		{"max 5", []Voxel{{0, 5, 2, 1}}, 8},
		{"max 7", []Voxel{{7, 7, 7, 1}}, 8},
		{"max 8", []Voxel{{0, 0, 8, 1}}, 16},
		{"largest", []Voxel{{32767, 0, 0, 1}}, 32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScaleFor(tt.voxels)
			if err != nil {
				t.Fatalf("ScaleFor: %v", err)
			}
			if got != tt.want {
				t.Fatalf("scale = %d, want %d", got, tt.want)
			}
		})
	}

	for _, c := range []uint16{32768, 65535} {
		if _, err := ScaleFor([]Voxel{{0, c, 0, 1}}); !errors.Is(err, ErrScaleOverflow) {
			t.Fatalf("coordinate %d: err = %v, want ErrScaleOverflow", c, err)
		}
		if _, err := New(mgl32.Vec3{}, []Voxel{{0, c, 0, 1}}); !errors.Is(err, ErrScaleOverflow) {
			t.Fatalf("New with coordinate %d: err = %v, want ErrScaleOverflow", c, err)
		}
	}
}

func TestNew_SingleVoxel(t *testing.T) {
	tree := mustNew(t, mgl32.Vec3{}, []Voxel{{0, 0, 0, 7}})
	if tree.Scale() != 1 {
		t.Fatalf("scale = %d, want 1", tree.Scale())
	}
	if got := tree.Stats(); got != (Stats{Parents: 0, Leaves: 1, Depth: 0}) {
		t.Fatalf("stats = %+v", got)
	}
	m, s, err := tree.MaterialAt(0, 0, 0)
	if err != nil || m != 7 || s != 1 {
		t.Fatalf("MaterialAt = %d, %d, %v; want 7, 1, nil", m, s, err)
	}
}

func TestNew_Empty(t *testing.T) {
	tree := mustNew(t, mgl32.Vec3{4, 5, 6}, nil)
	if tree.Scale() != 1 || tree.Min() != (mgl32.Vec3{4, 5, 6}) {
		t.Fatalf("scale %d min %v", tree.Scale(), tree.Min())
	}
	m, _, _ := tree.MaterialAt(0, 0, 0)
	if m != 0 {
		t.Fatalf("material = %d, want 0", m)
	}
}

func TestNew_UniformCubeCollapsesToOneLeaf(t *testing.T) {
	for _, n := range []uint16{2, 4, 8} {
		var vs []Voxel
		for _, v := range checkerboard(n) {
			v.Material = 3
			vs = append(vs, v)
		}
		tree := mustNew(t, mgl32.Vec3{}, vs)
		if tree.Scale() != n {
			t.Fatalf("n=%d: scale = %d", n, tree.Scale())
		}
		var leaves []Leaf
		for l := range tree.All() {
			leaves = append(leaves, l)
		}
		if len(leaves) != 1 {
			t.Fatalf("n=%d: %d leaves, want 1", n, len(leaves))
		}
		if leaves[0].Scale != n || leaves[0].Material != 3 || len(leaves[0].Path) != 0 {
			t.Fatalf("n=%d: leaf = %+v", n, leaves[0])
		}
	}
}

func TestNew_CheckerboardDoesNotCollapse(t *testing.T) {
	tree := mustNew(t, mgl32.Vec3{}, checkerboard(4))
	if got := tree.Stats(); got != (Stats{Parents: 9, Leaves: 64, Depth: 2}) {
		t.Fatalf("stats = %+v", got)
	}
}

func TestNew_OriginOffset(t *testing.T) {
	min := mgl32.Vec3{10, 20, 30}
	tree := mustNew(t, min, []Voxel{{1, 0, 0, 5}})
	if tree.Scale() != 2 {
		t.Fatalf("scale = %d, want 2", tree.Scale())
	}
	m, _, err := tree.MaterialAt(1, 0, 0)
	if err != nil || m != 5 {
		t.Fatalf("MaterialAt = %d, %v", m, err)
	}
	found := false
	tree.Walk(func(path []uint8, lmin mgl32.Vec3, scale, material uint16) {
		if material == 5 {
			found = true
			if lmin != (mgl32.Vec3{11, 20, 30}) || scale != 1 || !cmp.Equal(path, []uint8{1}) {
				t.Fatalf("leaf path %v min %v scale %d", path, lmin, scale)
			}
		}
	})
	if !found {
		t.Fatal("material 5 not reported by Walk")
	}
}

func TestInsert_SplitsAlongPath(t *testing.T) {
	tree := mustNew(t, mgl32.Vec3{}, []Voxel{{3, 3, 3, 2}})
	if got := tree.Stats(); got != (Stats{Parents: 2, Leaves: 15, Depth: 2}) {
		t.Fatalf("stats after New = %+v", got)
	}
	if err := tree.Insert(Voxel{0, 0, 0, 4}); err != nil {
		t.Fatal(err)
	}
	if got := tree.Stats(); got != (Stats{Parents: 3, Leaves: 22, Depth: 2}) {
		t.Fatalf("stats after Insert = %+v", got)
	}
	for _, c := range []struct {
		x, y, z    uint16
		mat, scale uint16
	}{
		{0, 0, 0, 4, 1},
		{1, 1, 1, 0, 1},
		{2, 0, 0, 0, 2},
		{3, 3, 3, 2, 1},
		{2, 2, 2, 0, 1},
	} {
		m, s, err := tree.MaterialAt(c.x, c.y, c.z)
		if err != nil || m != c.mat || s != c.scale {
			t.Fatalf("MaterialAt(%d,%d,%d) = %d, %d, %v; want %d, %d", c.x, c.y, c.z, m, s, err, c.mat, c.scale)
		}
	}
}

func TestInsert_SplitInheritsMaterial(t *testing.T) {
	var vs []Voxel
	for _, v := range checkerboard(4) {
		v.Material = 6
		vs = append(vs, v)
	}
	tree := mustNew(t, mgl32.Vec3{}, vs)
	if err := tree.Insert(Voxel{2, 1, 0, 9}); err != nil {
		t.Fatal(err)
	}
	for l := range tree.All() {
		want := uint16(6)
		if l.Min == (mgl32.Vec3{2, 1, 0}) && l.Scale == 1 {
			want = 9
		}
		if l.Material != want {
			t.Fatalf("leaf %+v: material %d, want %d", l, l.Material, want)
		}
	}
}

func TestInsert_Overwrite(t *testing.T) {
	base := checkerboard(4)
	cell := mgl32.Vec3{1, 2, 3}
	a := mustNew(t, mgl32.Vec3{}, append(append([]Voxel{}, base...), Voxel{1, 2, 3, 7}))
	b := mustNew(t, mgl32.Vec3{}, append(append([]Voxel{}, base...), Voxel{1, 2, 3, 7}, Voxel{1, 2, 3, 9}))

	m, _, _ := b.MaterialAt(1, 2, 3)
	if m != 9 {
		t.Fatalf("material = %d, want 9", m)
	}

	var la, lb []Leaf
	for l := range a.All() {
		la = append(la, l)
	}
	for l := range b.All() {
		lb = append(lb, l)
	}
	if len(la) != len(lb) {
		t.Fatalf("leaf counts differ: %d vs %d", len(la), len(lb))
	}
	for i := range la {
		if la[i].Min == cell {
			if la[i].Material != 7 || lb[i].Material != 9 {
				t.Fatalf("overwritten cell: %d -> %d", la[i].Material, lb[i].Material)
			}
			continue
		}
		if diff := cmp.Diff(la[i], lb[i]); diff != "" {
			t.Fatalf("leaf %d changed (-first +second):\n%s", i, diff)
		}
	}

	// Overwriting through Insert on a built tree gives the same result.
	if err := a.Insert(Voxel{1, 2, 3, 9}); err != nil {
		t.Fatal(err)
	}
	a.Collapse()
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("Insert overwrite differs from construction overwrite")
	}
}

func TestInsert_OutOfBounds(t *testing.T) {
	tree := mustNew(t, mgl32.Vec3{}, checkerboard(2))
	before := tree.Fingerprint()
	for _, v := range []Voxel{{2, 0, 0, 1}, {0, 2, 0, 1}, {0, 0, 9, 1}} {
		if err := tree.Insert(v); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("Insert(%v) = %v, want ErrOutOfBounds", v, err)
		}
	}
	if _, _, err := tree.MaterialAt(0, 0, 2); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("MaterialAt = %v, want ErrOutOfBounds", err)
	}
	if tree.Fingerprint() != before {
		t.Fatal("rejected insert modified the tree")
	}
}

func TestCollapse_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		tree := mustNew(t, mgl32.Vec3{}, randomVoxels(r, 200, 16, 3))
		once := tree.Fingerprint()
		if n := tree.Collapse(); n != 0 {
			t.Fatalf("second collapse merged %d nodes", n)
		}
		if tree.Fingerprint() != once {
			t.Fatal("second collapse changed the tree")
		}
	}
}

func TestCollapse_CascadesAfterInsert(t *testing.T) {
	vs := checkerboard(2)
	for i := range vs {
		vs[i].Material = 5
	}
	vs[0].Material = 1
	// Scale 4: fill the rest of the cube with 5 as well.
	for _, v := range checkerboard(4) {
		if v.X >= 2 || v.Y >= 2 || v.Z >= 2 {
			v.Material = 5
			vs = append(vs, v)
		}
	}
	tree := mustNew(t, mgl32.Vec3{}, vs)
	if got := tree.Stats(); got != (Stats{Parents: 2, Leaves: 15, Depth: 2}) {
		t.Fatalf("stats = %+v", got)
	}
	if err := tree.Insert(Voxel{0, 0, 0, 5}); err != nil {
		t.Fatal(err)
	}
	if n := tree.Collapse(); n != 2 {
		t.Fatalf("collapsed %d nodes, want 2", n)
	}
	if got := tree.Stats(); got != (Stats{Parents: 0, Leaves: 1, Depth: 0}) {
		t.Fatalf("stats = %+v", got)
	}
}

func TestCollapse_NoUniformParentRemains(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tree := mustNew(t, mgl32.Vec3{}, randomVoxels(r, 3000, 16, 2))
	var check func(n *node)
	check = func(n *node) {
		if n.isLeaf() {
			return
		}
		if _, ok := n.homogeneous(); ok {
			t.Fatalf("uniform parent left at %v scale %d", n.min, n.scale)
		}
		for _, c := range n.children {
			check(c)
		}
	}
	check(tree.root)
}

func TestCollapse_Logs(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	vs := checkerboard(4)
	for i := range vs {
		vs[i].Material = 2
	}
	if _, err := New(mgl32.Vec3{}, vs, WithLogger(logger)); err != nil {
		t.Fatal(err)
	}
	collapses := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "collapsing node" {
			collapses++
		}
	}
	// 8 scale-2 octants, then the root.
	if collapses != 9 {
		t.Fatalf("logged %d collapses, want 9", collapses)
	}
}

func TestWalk_Partition(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, size := range []int{1, 2, 5, 16, 33} {
		tree := mustNew(t, mgl32.Vec3{-3, 0, 2.5}, randomVoxels(r, 100, size, 4))
		root := uint64(tree.Scale())
		var total uint64
		for l := range tree.All() {
			total += l.Volume()
			for i := 0; i < 3; i++ {
				lo := l.Min[i] - tree.Min()[i]
				if lo < 0 || lo+float32(l.Scale) > float32(root) {
					t.Fatalf("leaf %+v outside root", l)
				}
			}
		}
		if total != root*root*root {
			t.Fatalf("size %d: leaf volume %d, want %d", size, total, root*root*root)
		}
	}
}

func TestWalk_Order(t *testing.T) {
	tree := mustNew(t, mgl32.Vec3{}, checkerboard(2))
	i := 0
	tree.Walk(func(path []uint8, min mgl32.Vec3, scale, material uint16) {
		if !cmp.Equal(path, []uint8{uint8(i)}) {
			t.Fatalf("leaf %d path %v", i, path)
		}
		if min != octantOffset(i) || scale != 1 {
			t.Fatalf("leaf %d min %v scale %d", i, min, scale)
		}
		i++
	})
	if i != 8 {
		t.Fatalf("visited %d leaves, want 8", i)
	}
}

func TestAll_StopsEarly(t *testing.T) {
	tree := mustNew(t, mgl32.Vec3{}, checkerboard(4))
	n := 0
	for range tree.All() {
		n++
		if n == 5 {
			break
		}
	}
	if n != 5 {
		t.Fatalf("visited %d", n)
	}
}

func TestReadsAreConcurrent(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	tree := mustNew(t, mgl32.Vec3{}, randomVoxels(r, 500, 32, 5))
	want := tree.Fingerprint()
	root := uint64(tree.Scale())
	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tree.Fingerprint() != want {
				errs <- "fingerprint differs"
			}
			var total uint64
			tree.Walk(func(_ []uint8, _ mgl32.Vec3, scale, _ uint16) {
				s := uint64(scale)
				total += s * s * s
			})
			if total != root*root*root {
				errs <- "walk volume differs"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}
