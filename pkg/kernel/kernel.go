// Package kernel defines the geometry kernel boundary. A kernel turns
// primitive shapes into triangle meshes; the scene interpreter and the
// batcher only ever see the resulting Mesh values, so backends can be
// swapped without touching the rest of the system.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel builds solids and meshes them.
type Kernel interface {
	// Box returns an axis-aligned box centred on the origin.
	Box(width, height, depth float64) (Solid, error)

	// ToMesh tessellates a solid into triangles.
	ToMesh(s Solid) (*Mesh, error)
}
