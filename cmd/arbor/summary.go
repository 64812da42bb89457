package main

import (
	"github.com/chazu/arbor/pkg/interp"
	"github.com/chazu/arbor/pkg/kernel"
)

// MeshData is the JSON form of one mesh.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals,omitempty"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color,omitempty"`
}

// DrawData is one individually drawn mesh.
type DrawData struct {
	Node      string    `json:"node"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Triangles int       `json:"triangles"`
	Selected  bool      `json:"selected,omitempty"`
	Mesh      *MeshData `json:"mesh,omitempty"`
}

// BatchData is one instanced draw.
type BatchData struct {
	Model     string `json:"model"`
	Physics   string `json:"physics"`
	Instances int    `json:"instances"`
	SubMeshes int    `json:"subMeshes"`
	Triangles int    `json:"triangles"`
}

// BodyData is one rigid body.
type BodyData struct {
	Node     string     `json:"node"`
	Kind     string     `json:"kind"`
	Model    string     `json:"model,omitempty"`
	Position [3]float32 `json:"position"`
}

// PlaceholderData is a model that could not be drawn.
type PlaceholderData struct {
	Node  string `json:"node"`
	Model string `json:"model"`
	State string `json:"state"`
}

// FrameData summarises a rendered frame.
type FrameData struct {
	Mode         string            `json:"mode"`
	Nodes        int               `json:"nodes"`
	DrawCalls    int               `json:"drawCalls"`
	Draws        []DrawData        `json:"draws"`
	Batches      []BatchData       `json:"batches"`
	Bodies       []BodyData        `json:"bodies"`
	Placeholders []PlaceholderData `json:"placeholders"`
}

func meshData(m *kernel.Mesh, color string) *MeshData {
	return &MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		Indices:  m.Indices,
		PartName: m.PartName,
		Color:    color,
	}
}

// summarize converts f. Mesh arrays are included only when withMeshes is
// set.
func summarize(f *interp.Frame, nodes int, withMeshes bool) FrameData {
	out := FrameData{
		Mode:         f.Mode.String(),
		Nodes:        nodes,
		DrawCalls:    f.DrawCalls(),
		Draws:        []DrawData{},
		Batches:      []BatchData{},
		Bodies:       []BodyData{},
		Placeholders: []PlaceholderData{},
	}
	for _, d := range f.Draws {
		dd := DrawData{
			Node:      d.Node.Short(),
			Name:      d.Name,
			Color:     d.Color,
			Triangles: d.Mesh.TriangleCount(),
			Selected:  d.Selected,
		}
		if withMeshes {
			dd.Mesh = meshData(d.Mesh, d.Color)
		}
		out.Draws = append(out.Draws, dd)
	}
	for _, b := range f.Batches {
		out.Batches = append(out.Batches, BatchData{
			Model:     b.Key.Filename,
			Physics:   b.Key.Physics.String(),
			Instances: len(b.Instances),
			SubMeshes: len(b.Merged.SubMeshes),
			Triangles: b.Merged.Mesh.TriangleCount(),
		})
	}
	for _, b := range f.Bodies {
		out.Bodies = append(out.Bodies, BodyData{
			Node:     b.Node.Short(),
			Kind:     b.Kind.String(),
			Model:    b.Model,
			Position: b.World.Translation(),
		})
	}
	for _, p := range f.Placeholders {
		out.Placeholders = append(out.Placeholders, PlaceholderData{
			Node:  p.Node.Short(),
			Model: p.Filename,
			State: p.State.String(),
		})
	}
	return out
}
