package document

import (
	"fmt"

	"github.com/chazu/arbor/pkg/graph"
)

// SchemaVersion is written into every document.
const SchemaVersion = 1

// Component type tags.
const (
	typeBox              = "box"
	typeStandardMaterial = "standard-material"
	typeWaterMaterial    = "water-material"
	typeModel            = "model"
	typePhysics          = "physics"
	typePointerEvent     = "pointer-event"
)

// document is the on-disk form of a graph. The tree is nested; node ids are
// kept so selections and references survive a save.
type document struct {
	Version int      `json:"version" yaml:"version"`
	Root    *nodeDoc `json:"root" yaml:"root"`
}

type nodeDoc struct {
	ID         graph.NodeID   `json:"id" yaml:"id"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	Transform  *transformDoc  `json:"transform,omitempty" yaml:"transform,omitempty"`
	Components []componentDoc `json:"components,omitempty" yaml:"components,omitempty"`
	Children   []*nodeDoc     `json:"children,omitempty" yaml:"children,omitempty"`
}

// transformDoc fields are pointers so absent fields decode to identity.
type transformDoc struct {
	Position *[3]float64 `json:"position,omitempty" yaml:"position,omitempty,flow"`
	Rotation *[3]float64 `json:"rotation,omitempty" yaml:"rotation,omitempty,flow"`
	Scale    *float64    `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// componentDoc is the union of every component variant's fields,
// discriminated by Type.
type componentDoc struct {
	Type string `json:"type" yaml:"type"`

	Width  float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Depth  float64 `json:"depth,omitempty" yaml:"depth,omitempty"`

	Color       string             `json:"color,omitempty" yaml:"color,omitempty"`
	Roughness   float64            `json:"roughness,omitempty" yaml:"roughness,omitempty"`
	Metalness   float64            `json:"metalness,omitempty" yaml:"metalness,omitempty"`
	Opacity     float64            `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	Transparent bool               `json:"transparent,omitempty" yaml:"transparent,omitempty"`
	Wireframe   bool               `json:"wireframe,omitempty" yaml:"wireframe,omitempty"`
	Extra       map[string]float64 `json:"extra,omitempty" yaml:"extra,omitempty"`
	Distortion  float64            `json:"distortion,omitempty" yaml:"distortion,omitempty"`
	Size        float64            `json:"size,omitempty" yaml:"size,omitempty"`

	File      string `json:"file,omitempty" yaml:"file,omitempty"`
	Instanced bool   `json:"instanced,omitempty" yaml:"instanced,omitempty"`

	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	Mode  string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Event string `json:"event,omitempty" yaml:"event,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// ---------------------------------------------------------------------------
// Graph -> document
// ---------------------------------------------------------------------------

func fromGraph(g *graph.Graph) *document {
	return &document{Version: SchemaVersion, Root: fromNode(g, g.Root())}
}

func fromNode(g *graph.Graph, n *graph.Node) *nodeDoc {
	d := &nodeDoc{ID: n.ID, Name: n.Name}
	if n.Transform != nil {
		t := *n.Transform
		pos := [3]float64{t.Position.X, t.Position.Y, t.Position.Z}
		rot := [3]float64{t.Rotation.X, t.Rotation.Y, t.Rotation.Z}
		d.Transform = &transformDoc{Position: &pos, Rotation: &rot, Scale: &t.Scale}
	}
	for _, c := range n.Components {
		var enc componentEncoder
		c.Accept(&enc)
		d.Components = append(d.Components, enc.doc)
	}
	for _, c := range g.Children(n) {
		d.Children = append(d.Children, fromNode(g, c))
	}
	return d
}

type componentEncoder struct {
	doc componentDoc
}

func (e *componentEncoder) VisitBox(b graph.BoxGeometry) {
	e.doc = componentDoc{Type: typeBox, Width: b.Width, Height: b.Height, Depth: b.Depth}
}

func (e *componentEncoder) VisitStandardMaterial(m graph.StandardMaterial) {
	e.doc = componentDoc{
		Type:        typeStandardMaterial,
		Color:       m.Color,
		Roughness:   m.Roughness,
		Metalness:   m.Metalness,
		Opacity:     m.Opacity,
		Transparent: m.Transparent,
		Wireframe:   m.Wireframe,
		Extra:       m.Extra,
	}
}

func (e *componentEncoder) VisitWaterMaterial(m graph.WaterMaterial) {
	e.doc = componentDoc{Type: typeWaterMaterial, Color: m.Color, Distortion: m.Distortion, Size: m.Size}
}

func (e *componentEncoder) VisitModelRef(m graph.ModelRef) {
	e.doc = componentDoc{Type: typeModel, File: m.Filename, Instanced: m.Instanced}
}

func (e *componentEncoder) VisitPhysics(p graph.Physics) {
	e.doc = componentDoc{Type: typePhysics, Body: p.Body.String()}
}

func (e *componentEncoder) VisitPointerEvent(p graph.PointerEvent) {
	e.doc = componentDoc{Type: typePointerEvent, Mode: p.Mode.String(), Event: p.Event, URL: p.URL}
}

// ---------------------------------------------------------------------------
// Document -> graph
// ---------------------------------------------------------------------------

func (d *document) toGraph() (*graph.Graph, error) {
	if d.Root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}
	b := graph.NewBuilder()
	if err := addNode(b, graph.ZeroID, d.Root); err != nil {
		return nil, err
	}
	g, err := b.Graph()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return g, nil
}

func addNode(b *graph.Builder, parent graph.NodeID, d *nodeDoc) error {
	if d == nil {
		return fmt.Errorf("%w: null node under %s", ErrMalformed, parent.Short())
	}
	n := graph.Node{ID: d.ID, Name: d.Name}
	if d.Transform != nil {
		t := d.Transform.toTransform()
		n.Transform = &t
	}
	for i, cd := range d.Components {
		c, err := cd.toComponent()
		if err != nil {
			return fmt.Errorf("%w: node %s component %d: %w", ErrMalformed, d.ID.Short(), i, err)
		}
		n.Components = append(n.Components, c)
	}
	if err := b.Add(parent, n); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for _, c := range d.Children {
		if err := addNode(b, d.ID, c); err != nil {
			return err
		}
	}
	return nil
}

func (t *transformDoc) toTransform() graph.Transform {
	out := graph.Identity()
	if t.Position != nil {
		out.Position = graph.Vec3{X: t.Position[0], Y: t.Position[1], Z: t.Position[2]}
	}
	if t.Rotation != nil {
		out.Rotation = graph.Vec3{X: t.Rotation[0], Y: t.Rotation[1], Z: t.Rotation[2]}
	}
	if t.Scale != nil {
		out.Scale = *t.Scale
	}
	return out
}

func (c componentDoc) toComponent() (graph.Component, error) {
	switch c.Type {
	case typeBox:
		return graph.BoxGeometry{Width: c.Width, Height: c.Height, Depth: c.Depth}, nil
	case typeStandardMaterial:
		return graph.StandardMaterial{
			Color:       c.Color,
			Roughness:   c.Roughness,
			Metalness:   c.Metalness,
			Opacity:     c.Opacity,
			Transparent: c.Transparent,
			Wireframe:   c.Wireframe,
			Extra:       c.Extra,
		}, nil
	case typeWaterMaterial:
		return graph.WaterMaterial{Color: c.Color, Distortion: c.Distortion, Size: c.Size}, nil
	case typeModel:
		return graph.ModelRef{Filename: c.File, Instanced: c.Instanced}, nil
	case typePhysics:
		if c.Body == "" {
			return graph.Physics{}, nil
		}
		k, err := graph.ParseBodyKind(c.Body)
		if err != nil {
			return nil, err
		}
		return graph.Physics{Body: k}, nil
	case typePointerEvent:
		p := graph.PointerEvent{Event: c.Event, URL: c.URL}
		if c.Mode != "" {
			m, err := graph.ParsePointerMode(c.Mode)
			if err != nil {
				return nil, err
			}
			p.Mode = m
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown component type %q", c.Type)
}
