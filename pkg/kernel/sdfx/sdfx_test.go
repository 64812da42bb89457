package sdfx

import (
	"math"
	"testing"

	"github.com/chazu/arbor/pkg/kernel"
)

func TestBox(t *testing.T) {
	k := New(16)
	box, err := k.Box(100, 50, 25)
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	// Verify vertex and index array sizes are consistent.
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
	if got := mesh.Layout(); got != kernel.AttrPosition|kernel.AttrNormal {
		t.Errorf("Layout() = %v, want position|normal", got)
	}
}

func TestBoxMeshIsCentred(t *testing.T) {
	k := New(16)
	box, err := k.Box(4, 2, 2)
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	min, max := mesh.Bounds()
	const tol = 0.5
	for i := 0; i < 3; i++ {
		if centre := (min[i] + max[i]) / 2; math.Abs(float64(centre)) > tol {
			t.Errorf("axis %d centre = %f, want ~0", i, centre)
		}
	}
	if width := max[0] - min[0]; math.Abs(float64(width)-4) > tol {
		t.Errorf("mesh width = %f, want ~4", width)
	}
}

func TestBoxInvalid(t *testing.T) {
	if _, err := New(0).Box(-1, 1, 1); err == nil {
		t.Error("Box with a negative dimension should fail")
	}
}

func TestBoundingBox(t *testing.T) {
	k := New(0)
	box, err := k.Box(100, 50, 25)
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	min, max := box.BoundingBox()

	const tol = 0.01
	expectMin := [3]float64{-50, -25, -12.5}
	expectMax := [3]float64{50, 25, 12.5}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected %f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected %f", i, max[i], expectMax[i])
		}
	}
}

func TestDefaultCells(t *testing.T) {
	if got := New(-3).Cells(); got != DefaultMeshCells {
		t.Errorf("Cells() = %d, want %d", got, DefaultMeshCells)
	}
	if got := New(8).Cells(); got != 8 {
		t.Errorf("Cells() = %d, want 8", got)
	}
}

type foreignSolid struct{}

func (foreignSolid) BoundingBox() (min, max [3]float64) { return }

func TestToMeshForeignSolid(t *testing.T) {
	if _, err := New(8).ToMesh(foreignSolid{}); err == nil {
		t.Error("ToMesh should reject solids from another kernel")
	}
}
