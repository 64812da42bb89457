package graph

import (
	"fmt"
	"log/slog"

	"github.com/jinzhu/copier"
)

// ComponentKind enumerates the capability families a node can carry.
type ComponentKind int

const (
	KindGeometry     ComponentKind = iota // renderable shape
	KindMaterial                          // surface appearance
	KindModel                             // reference to a loaded asset
	KindPhysics                           // rigid-body participation
	KindPointerEvent                      // pointer-down behaviour
)

func (k ComponentKind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindMaterial:
		return "material"
	case KindModel:
		return "model"
	case KindPhysics:
		return "physics"
	case KindPointerEvent:
		return "pointer-event"
	default:
		return "unknown"
	}
}

// Component is a tagged capability attached to a node. The set of
// implementations is closed: the unexported marker method restricts them to
// this package, and Accept forces every Visitor to handle each variant.
type Component interface {
	Kind() ComponentKind
	Accept(v Visitor)
	component()
}

// Visitor receives one call per component variant. Adding a variant adds a
// method here, which breaks every consumer until it handles the new kind.
type Visitor interface {
	VisitBox(BoxGeometry)
	VisitStandardMaterial(StandardMaterial)
	VisitWaterMaterial(WaterMaterial)
	VisitModelRef(ModelRef)
	VisitPhysics(Physics)
	VisitPointerEvent(PointerEvent)
}

// ---------------------------------------------------------------------------
// Geometry
// ---------------------------------------------------------------------------

// BoxGeometry is an axis-aligned box centred on the node origin.
type BoxGeometry struct {
	Width  float64
	Height float64
	Depth  float64
}

func (BoxGeometry) Kind() ComponentKind { return KindGeometry }
func (b BoxGeometry) Accept(v Visitor) { v.VisitBox(b) }
func (BoxGeometry) component() {}

// ---------------------------------------------------------------------------
// Material
// ---------------------------------------------------------------------------

// StandardMaterial is a physically based surface. Extra carries surface
// properties that have no dedicated field (e.g. "emissiveIntensity").
type StandardMaterial struct {
	Color       string
	Roughness   float64
	Metalness   float64
	Opacity     float64
	Transparent bool
	Wireframe   bool
	Extra       map[string]float64
}

func (StandardMaterial) Kind() ComponentKind { return KindMaterial }
func (m StandardMaterial) Accept(v Visitor) { v.VisitStandardMaterial(m) }
func (StandardMaterial) component() {}

// WaterMaterial is an animated water surface.
type WaterMaterial struct {
	Color      string
	Distortion float64
	Size       float64
}

func (WaterMaterial) Kind() ComponentKind { return KindMaterial }
func (m WaterMaterial) Accept(v Visitor) { v.VisitWaterMaterial(m) }
func (WaterMaterial) component() {}

// ---------------------------------------------------------------------------
// Model reference
// ---------------------------------------------------------------------------

// ModelRef substitutes a loaded asset for the node. Instanced references to
// the same file are batched into one draw in play mode.
type ModelRef struct {
	Filename  string
	Instanced bool
}

func (ModelRef) Kind() ComponentKind { return KindModel }
func (m ModelRef) Accept(v Visitor) { v.VisitModelRef(m) }
func (ModelRef) component() {}

// ---------------------------------------------------------------------------
// Physics
// ---------------------------------------------------------------------------

// BodyKind selects how a rigid body participates in the simulation.
type BodyKind int

const (
	BodyFixed   BodyKind = iota // immovable collider
	BodyDynamic                 // simulated body
)

func (k BodyKind) String() string {
	switch k {
	case BodyFixed:
		return "fixed"
	case BodyDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// ParseBodyKind is the inverse of BodyKind.String.
func ParseBodyKind(s string) (BodyKind, error) {
	switch s {
	case "fixed":
		return BodyFixed, nil
	case "dynamic":
		return BodyDynamic, nil
	}
	return 0, fmt.Errorf("invalid body kind %q, expected fixed or dynamic", s)
}

// Physics wraps the node in a rigid body in play mode.
type Physics struct {
	Body BodyKind
}

func (Physics) Kind() ComponentKind { return KindPhysics }
func (p Physics) Accept(v Visitor) { v.VisitPhysics(p) }
func (Physics) component() {}

// ---------------------------------------------------------------------------
// Pointer events
// ---------------------------------------------------------------------------

// PointerMode selects what a pointer-down does in play mode.
type PointerMode int

const (
	PointerEmit PointerMode = iota // broadcast a named scene event
	PointerLink                    // open a URL
)

func (m PointerMode) String() string {
	switch m {
	case PointerEmit:
		return "emit"
	case PointerLink:
		return "link"
	default:
		return "unknown"
	}
}

// ParsePointerMode is the inverse of PointerMode.String.
func ParsePointerMode(s string) (PointerMode, error) {
	switch s {
	case "emit":
		return PointerEmit, nil
	case "link":
		return PointerLink, nil
	}
	return 0, fmt.Errorf("invalid pointer mode %q, expected emit or link", s)
}

// PointerEvent intercepts pointer-down on the node. Event names the scene
// event emitted in PointerEmit mode (the node name when empty); URL is the
// target in PointerLink mode.
type PointerEvent struct {
	Mode  PointerMode
	Event string
	URL   string
}

func (PointerEvent) Kind() ComponentKind { return KindPointerEvent }
func (p PointerEvent) Accept(v Visitor) { v.VisitPointerEvent(p) }
func (PointerEvent) component() {}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// CloneComponent returns a deep copy of c. Components are values, but
// StandardMaterial carries a map that must not be shared between nodes.
func CloneComponent(c Component) Component {
	m, ok := c.(StandardMaterial)
	if !ok {
		return c
	}
	var out StandardMaterial
	if err := copier.CopyWithOption(&out, &m, copier.Option{DeepCopy: true}); err != nil {
		slog.Error("graph.CloneComponent", "err", err)
		return m
	}
	return out
}

// Find returns the first component of type T on n.
func Find[T Component](n *Node) (T, bool) {
	for _, c := range n.Components {
		if t, ok := c.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// FindKind returns the first component of the given kind on n.
func FindKind(n *Node, k ComponentKind) (Component, bool) {
	for _, c := range n.Components {
		if c.Kind() == k {
			return c, true
		}
	}
	return nil, false
}
