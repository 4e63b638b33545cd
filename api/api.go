package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/voxelsplace/svo/svo"
)

// VoxelJSON is the JSON input format: {"min":[x,y,z],"voxels":[[x,y,z,m],...]}.
type VoxelJSON struct {
	Min    [3]float32  `json:"min"`
	Voxels [][4]uint16 `json:"voxels"`
}

// ParseVoxelJSON decodes a JSON voxel list.
func ParseVoxelJSON(data []byte) (mgl32.Vec3, []svo.Voxel, error) {
	var in VoxelJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return mgl32.Vec3{}, nil, fmt.Errorf("invalid voxel JSON: %w", err)
	}
	voxels := make([]svo.Voxel, len(in.Voxels))
	for i, v := range in.Voxels {
		voxels[i] = svo.Voxel{X: v[0], Y: v[1], Z: v[2], Material: v[3]}
	}
	return mgl32.Vec3(in.Min), voxels, nil
}

// VoxelJSONToStream converts a JSON voxel list into .svox bytes.
func VoxelJSONToStream(data []byte) ([]byte, error) {
	min, voxels, err := ParseVoxelJSON(data)
	if err != nil {
		return nil, err
	}
	return svo.EncodeVoxels(min, voxels), nil
}

// FlattenVoxels builds a tree and returns its buffer in host byte order, ready
// for upload to a GPU storage buffer.
func FlattenVoxels(min mgl32.Vec3, voxels []svo.Voxel) ([]byte, error) {
	tree, err := svo.New(min, voxels)
	if err != nil {
		return nil, err
	}
	return tree.Flatten(), nil
}

// VoxelStreamToSVOB builds a tree from .svox bytes and returns an .svob
// container holding its little-endian buffer.
func VoxelStreamToSVOB(stream []byte, comp svo.Compression) ([]byte, error) {
	min, voxels, err := svo.DecodeVoxels(stream)
	if err != nil {
		return nil, err
	}
	tree, err := svo.New(min, voxels)
	if err != nil {
		return nil, fmt.Errorf("failed to build octree: %w", err)
	}
	return svo.MarshalContainer(tree.FlattenOrder(binary.LittleEndian), binary.LittleEndian, comp)
}

// SVOBToFlat opens an .svob container and decodes and validates its buffer.
func SVOBToFlat(data []byte) (*svo.Flat, error) {
	raw, order, err := svo.UnmarshalContainer(data)
	if err != nil {
		return nil, err
	}
	f, err := svo.Decode(raw, order)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// SVOBToGLB renders every solid leaf of an .svob container as a cube and
// returns the scene as .glb bytes.
func SVOBToGLB(data []byte) ([]byte, error) {
	f, err := SVOBToFlat(data)
	if err != nil {
		return nil, err
	}
	doc, err := MeshDocument(svo.MeshFromFlat(f), "SVOB -> GLB")
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	enc := gltf.NewEncoder(&out)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// MeshDocument wraps a mesh in a single-node glTF document with per-vertex
// colours taken from svo.MaterialColor.
func MeshDocument(mesh *svo.Mesh, generator string) (*gltf.Document, error) {
	if len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("no solid leaves to export")
	}
	positions := make([][3]float32, len(mesh.Vertices))
	normals := make([][3]float32, len(mesh.Vertices))
	colors := make([][4]float32, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		positions[i] = v.Position
		normals[i] = v.Normal
		colors[i] = svo.MaterialColor(v.Material)
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = generator
	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	colorAccessor := modeler.WriteColor(doc, colors)
	indicesAccessor := modeler.WriteIndices(doc, mesh.Indices)
	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.NORMAL:   uint32(normalAccessor),
			gltf.COLOR_0:  uint32(colorAccessor),
		},
		Indices:  gltf.Index(uint32(indicesAccessor)),
		Material: gltf.Index(0),
	}
	pbr := &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float32{1, 1, 1, 1}, MetallicFactor: gltf.Float(0), RoughnessFactor: gltf.Float(1)}
	doc.Materials = []*gltf.Material{{PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}}
	doc.Meshes = []*gltf.Mesh{{Name: "Octree", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))
	return doc, nil
}
