package svo

import (
	"encoding/binary"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl32"
)

// Fingerprint hashes the little-endian flattened form of the tree. Trees with
// the same shape and leaf contents share a fingerprint.
func (t *Octree) Fingerprint() uint64 {
	return xxhash.Sum64(t.FlattenOrder(binary.LittleEndian))
}

// Vertex is a mesh corner. Material indexes MaterialColor.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	Material uint16
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// cube faces: normal, then four corners (unit cube) wound counter-clockwise
// seen from outside.
var cubeFaces = [6]struct {
	normal  [3]float32
	corners [4][3]float32
}{
	{[3]float32{1, 0, 0}, [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{[3]float32{-1, 0, 0}, [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{[3]float32{0, 1, 0}, [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{[3]float32{0, -1, 0}, [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{[3]float32{0, 0, 1}, [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{[3]float32{0, 0, -1}, [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
}

func (m *Mesh) addCube(min mgl32.Vec3, scale, material uint16) {
	s := float32(scale)
	for _, f := range cubeFaces {
		base := uint32(len(m.Vertices))
		for _, c := range f.corners {
			m.Vertices = append(m.Vertices, Vertex{
				Position: [3]float32{min[0] + c[0]*s, min[1] + c[1]*s, min[2] + c[2]*s},
				Normal:   f.normal,
				Material: material,
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
}

// Mesh emits one cube per leaf whose material is not 0.
func (t *Octree) Mesh() *Mesh {
	m := &Mesh{}
	for l := range t.All() {
		if l.Material != 0 {
			m.addCube(l.Min, l.Scale, l.Material)
		}
	}
	return m
}

// MeshFromFlat is Mesh for a decoded buffer.
func MeshFromFlat(f *Flat) *Mesh {
	m := &Mesh{}
	for _, l := range f.Leaves {
		if l.Material != 0 {
			m.addCube(l.Min, l.Scale, l.Material)
		}
	}
	return m
}

// MaterialColor returns an opaque RGBA colour for a material id, stable across
// runs.
func MaterialColor(id uint16) [4]float32 {
	h := xxhash.Sum64(binary.LittleEndian.AppendUint16(nil, id))
	return [4]float32{
		float32(64+uint8(h)%192) / 255,
		float32(64+uint8(h>>8)%192) / 255,
		float32(64+uint8(h>>16)%192) / 255,
		1,
	}
}
