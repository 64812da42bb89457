package kernel

import "testing"

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshLayout(t *testing.T) {
	tri := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	tests := []struct {
		name string
		mesh Mesh
		want Attribute
	}{
		{"empty", Mesh{}, 0},
		{"positions only", Mesh{Vertices: tri}, AttrPosition},
		{"with normals", Mesh{Vertices: tri, Normals: make([]float32, 9)}, AttrPosition | AttrNormal},
		{"full", Mesh{Vertices: tri, Normals: make([]float32, 9), Texcoords: make([]float32, 6)}, AttrPosition | AttrNormal | AttrTexcoord},
		{"short normals ignored", Mesh{Vertices: tri, Normals: make([]float32, 3)}, AttrPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mesh.Layout(); got != tt.want {
				t.Errorf("Layout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttributeString(t *testing.T) {
	if got := (AttrPosition | AttrTexcoord).String(); got != "position|texcoord" {
		t.Errorf("String() = %q, want position|texcoord", got)
	}
	if got := Attribute(0).String(); got != "none" {
		t.Errorf("String() = %q, want none", got)
	}
}

func TestMeshCloneIsDeep(t *testing.T) {
	m := &Mesh{Vertices: []float32{1, 2, 3}, Indices: []uint32{0}, Material: 2, PartName: "a"}
	c := m.Clone()
	c.Vertices[0] = 9
	c.Indices[0] = 5
	if m.Vertices[0] != 1 || m.Indices[0] != 0 {
		t.Error("Clone shares backing arrays with the original")
	}
	if c.Material != 2 || c.PartName != "a" {
		t.Errorf("Clone lost fields: %+v", c)
	}
}

func TestMeshBounds(t *testing.T) {
	m := &Mesh{Vertices: []float32{-1, 2, 0, 3, -4, 5}}
	min, max := m.Bounds()
	if min != [3]float32{-1, -4, 0} || max != [3]float32{3, 2, 5} {
		t.Errorf("Bounds() = %v %v", min, max)
	}
	min, max = (&Mesh{}).Bounds()
	if min != [3]float32{} || max != [3]float32{} {
		t.Error("empty mesh bounds should be zero")
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubSolid is a minimal Solid implementation for testing.
type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable.
type stubKernel struct{}

func (k *stubKernel) Box(x, y, z float64) (Solid, error) {
	return &stubSolid{
		minBB: [3]float64{-x / 2, -y / 2, -z / 2},
		maxBB: [3]float64{x / 2, y / 2, z / 2},
	}, nil
}

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBoxBoundingBox(t *testing.T) {
	var k Kernel = &stubKernel{}
	s, err := k.Box(10, 20, 30)
	if err != nil {
		t.Fatalf("Box() error = %v", err)
	}
	min, max := s.BoundingBox()
	if min != [3]float64{-5, -10, -15} {
		t.Errorf("Box min = %v, want [-5 -10 -15]", min)
	}
	if max != [3]float64{5, 10, 15} {
		t.Errorf("Box max = %v, want [5 10 15]", max)
	}
}
