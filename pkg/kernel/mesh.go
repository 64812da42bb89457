package kernel

import (
	"math"
	"strings"
)

// Attribute is a bitmask of per-vertex data present in a mesh. Meshes can
// only be merged into one draw when their layouts match.
type Attribute uint32

const (
	AttrPosition Attribute = 1 << iota
	AttrNormal
	AttrTexcoord
)

// Has reports whether every attribute in o is present in a.
func (a Attribute) Has(o Attribute) bool { return a&o == o }

func (a Attribute) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	for _, n := range []struct {
		bit  Attribute
		name string
	}{{AttrPosition, "position"}, {AttrNormal, "normal"}, {AttrTexcoord, "texcoord"}} {
		if a.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, texcoords 2 floats per vertex,
// indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices  []float32 `json:"vertices"`            // [x0,y0,z0, x1,y1,z1, ...]
	Normals   []float32 `json:"normals,omitempty"`   // [nx0,ny0,nz0, ...]
	Texcoords []float32 `json:"texcoords,omitempty"` // [u0,v0, u1,v1, ...]
	Indices   []uint32  `json:"indices"`             // [i0,i1,i2, ...] triangles
	Material  int       `json:"material"`            // material slot within the owning asset
	PartName  string    `json:"partName"`            // which scene node or asset part this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Layout reports which per-vertex attributes the mesh carries. An
// attribute counts as present only when it covers every vertex.
func (m *Mesh) Layout() Attribute {
	var a Attribute
	n := m.VertexCount()
	if n == 0 {
		return a
	}
	a |= AttrPosition
	if len(m.Normals) == n*3 {
		a |= AttrNormal
	}
	if len(m.Texcoords) == n*2 {
		a |= AttrTexcoord
	}
	return a
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices:  append([]float32(nil), m.Vertices...),
		Normals:   append([]float32(nil), m.Normals...),
		Texcoords: append([]float32(nil), m.Texcoords...),
		Indices:   append([]uint32(nil), m.Indices...),
		Material:  m.Material,
		PartName:  m.PartName,
	}
}

// Bounds returns the axis-aligned bounds of the vertices. An empty mesh
// reports zero bounds.
func (m *Mesh) Bounds() (min, max [3]float32) {
	if m.IsEmpty() {
		return min, max
	}
	for i := 0; i < 3; i++ {
		min[i] = math.MaxFloat32
		max[i] = -math.MaxFloat32
	}
	for v := 0; v+2 < len(m.Vertices); v += 3 {
		for i := 0; i < 3; i++ {
			c := m.Vertices[v+i]
			if c < min[i] {
				min[i] = c
			}
			if c > max[i] {
				max[i] = c
			}
		}
	}
	return min, max
}
