// Package tessellate turns scene geometry into world-space triangle meshes.
// It owns the world-transform stack used by every graph walk that needs
// placement, and memoises kernel output for repeated box sizes.
package tessellate

import (
	"fmt"
	"sync"

	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/kernel"
)

// Stack accumulates world transforms during graph traversal. The bottom of
// the stack is the identity.
type Stack struct {
	mats []Mat4
}

// NewStack returns a stack holding only the identity.
func NewStack() *Stack {
	return &Stack{mats: []Mat4{Identity()}}
}

// Push composes t onto the current top and returns the new world matrix.
func (s *Stack) Push(t graph.Transform) Mat4 {
	top := s.Top().Mul(TRS(t))
	s.mats = append(s.mats, top)
	return top
}

// Pop discards the top matrix. The identity at the bottom is never popped.
func (s *Stack) Pop() {
	if len(s.mats) > 1 {
		s.mats = s.mats[:len(s.mats)-1]
	}
}

// Top returns the current world matrix.
func (s *Stack) Top() Mat4 { return s.mats[len(s.mats)-1] }

// Depth returns the number of pushed transforms.
func (s *Stack) Depth() int { return len(s.mats) - 1 }

// World returns the world matrix of id: the product of the local
// transforms along its path from the root. Unknown ids yield the identity.
func World(g *graph.Graph, id graph.NodeID) Mat4 {
	m := Identity()
	for _, pid := range g.Path(id) {
		m = m.Mul(TRS(g.FindByID(pid).TransformOrIdentity()))
	}
	return m
}

type boxKey struct {
	w, h, d float64
}

type boxEntry struct {
	mesh *kernel.Mesh
	err  error
}

// Mesher memoises kernel meshes for box geometry. Returned meshes are
// shared and must be treated as read-only.
type Mesher struct {
	k     kernel.Kernel
	mu    sync.Mutex
	boxes map[boxKey]boxEntry
}

// NewMesher returns a mesher backed by k.
func NewMesher(k kernel.Kernel) *Mesher {
	return &Mesher{k: k, boxes: make(map[boxKey]boxEntry)}
}

// Box returns the local-space mesh of b, building it on first use.
func (m *Mesher) Box(b graph.BoxGeometry) (*kernel.Mesh, error) {
	key := boxKey{b.Width, b.Height, b.Depth}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.boxes[key]; ok {
		return e.mesh, e.err
	}
	var e boxEntry
	solid, err := m.k.Box(b.Width, b.Height, b.Depth)
	if err == nil {
		e.mesh, err = m.k.ToMesh(solid)
	}
	e.err = err
	m.boxes[key] = e
	return e.mesh, e.err
}

// Cached returns the number of memoised box sizes.
func (m *Mesher) Cached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boxes)
}

// Tessellate walks the scene graph and produces one world-space mesh per
// box geometry, named after its node. The tessellator is read-only and
// never mutates the graph.
func Tessellate(g *graph.Graph, m *Mesher) ([]*kernel.Mesh, error) {
	if g == nil {
		return nil, nil
	}
	var meshes []*kernel.Mesh
	if err := walkNode(g, m, g.Root(), NewStack(), &meshes); err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	return meshes, nil
}

// walkNode pushes the node's transform, meshes its boxes, recurses into
// children, then pops.
func walkNode(g *graph.Graph, m *Mesher, n *graph.Node, ts *Stack, out *[]*kernel.Mesh) error {
	world := ts.Push(n.TransformOrIdentity())
	defer ts.Pop()

	for _, c := range n.Components {
		box, ok := c.(graph.BoxGeometry)
		if !ok {
			continue
		}
		local, err := m.Box(box)
		if err != nil {
			return fmt.Errorf("node %s: %w", n.ID.Short(), err)
		}
		mesh := world.ApplyMesh(local)
		// Set the part name: prefer the node's Name, fall back to short ID.
		if n.Name != "" {
			mesh.PartName = n.Name
		} else {
			mesh.PartName = n.ID.Short()
		}
		*out = append(*out, mesh)
	}

	for _, child := range g.Children(n) {
		if err := walkNode(g, m, child, ts, out); err != nil {
			return err
		}
	}
	return nil
}
