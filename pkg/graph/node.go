package graph

import (
	"fmt"
	"math"
	"strconv"
)

// NodeID is a process-unique, stable identifier for scene nodes.
// Ids are allocated from an IDSource and never reused.
type NodeID uint64

// ZeroID is the absent node.
const ZeroID NodeID = 0

// MaxID is the largest id a built graph may carry. Ids above it would
// leave the id source no room to allocate.
const MaxID NodeID = 1<<53 - 1

// IsZero reports whether the id refers to no node.
func (id NodeID) IsZero() bool { return id == ZeroID }

// String returns the decimal form of the id.
func (id NodeID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Short returns a compact form for log and error messages.
func (id NodeID) Short() string { return "#" + id.String() }

// Vec3 is a 3D vector.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

func (v Vec3) String() string { return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z) }

// Transform is a node's local placement relative to its parent.
// Rotation holds XYZ Euler angles in radians. Scale is uniform.
type Transform struct {
	Position Vec3
	Rotation Vec3
	Scale    float64
}

// Identity returns the identity transform.
func Identity() Transform { return Transform{Scale: 1} }

// IsIdentity reports whether t leaves its subtree unchanged.
func (t Transform) IsIdentity() bool {
	return t.Position.IsZero() && t.Rotation.IsZero() && t.Scale == 1
}

// TransformPatch updates selected fields of a transform. Nil fields are left
// as they are.
type TransformPatch struct {
	Position *Vec3
	Rotation *Vec3
	Scale    *float64
}

// Apply returns t with the patch applied.
func (p TransformPatch) Apply(t Transform) Transform {
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.Rotation != nil {
		t.Rotation = *p.Rotation
	}
	if p.Scale != nil && !math.IsNaN(*p.Scale) {
		t.Scale = *p.Scale
	}
	return t
}

// Node is the fundamental element of the scene graph. A node stored in a
// Graph must not be modified; use Graph.Update or Graph.MapSubtree.
type Node struct {
	ID         NodeID
	Name       string
	Parent     NodeID
	Children   []NodeID
	Components []Component
	Transform  *Transform
}

// TransformOrIdentity returns the node's transform, defaulting absent
// fields to identity.
func (n *Node) TransformOrIdentity() Transform {
	if n.Transform == nil {
		return Identity()
	}
	return *n.Transform
}

// IsRoot reports whether n has no parent.
func (n *Node) IsRoot() bool { return n.Parent.IsZero() }

// copy returns a shallow copy of n with its own Children and Components
// slices, safe to modify before insertion into a new graph.
func (n *Node) copy() *Node {
	c := *n
	c.Children = append([]NodeID(nil), n.Children...)
	c.Components = append([]Component(nil), n.Components...)
	if n.Transform != nil {
		t := *n.Transform
		c.Transform = &t
	}
	return &c
}

// label returns the node name, or its short id when unnamed.
func (n *Node) label() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID.Short()
}
