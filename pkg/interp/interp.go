// Package interp turns a scene graph into a frame: draws, instanced
// batches, physics bodies and placeholder glyphs for models that are not
// loaded. It also resolves pointer interaction. Every collaborator comes in
// through a Context; the package holds no global state.
package interp

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/browser"

	"github.com/chazu/arbor/pkg/assets"
	"github.com/chazu/arbor/pkg/batch"
	"github.com/chazu/arbor/pkg/events"
	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/kernel"
	"github.com/chazu/arbor/pkg/kernel/sdfx"
	"github.com/chazu/arbor/pkg/modelreg"
	"github.com/chazu/arbor/pkg/tessellate"
)

// ---------------------------------------------------------------------------
// Mode
// ---------------------------------------------------------------------------

// Mode selects how the graph is interpreted.
type Mode int

const (
	ModeEdit Mode = iota // every node individually selectable, no physics
	ModePlay             // physics bodies, batching and pointer events
)

func (m Mode) String() string {
	switch m {
	case ModeEdit:
		return "edit"
	case ModePlay:
		return "play"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "edit" or "play".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "edit":
		return ModeEdit, nil
	case "play":
		return ModePlay, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

// ModelSource reports the load state of model files.
type ModelSource interface {
	State(filename string) modelreg.State
	Asset(filename string) *assets.Asset
}

// Selection is the editor's selection.
type Selection interface {
	Selected() graph.NodeID
	Select(id graph.NodeID) bool
}

// LinkOpener opens a URL outside the scene.
type LinkOpener func(url string) error

// Context carries the interpreter's collaborators. Nil fields get defaults
// in New, except Models and Selection which are optional.
type Context struct {
	Mode      Mode
	Models    ModelSource
	Batcher   *batch.Registry
	Mesher    *tessellate.Mesher
	Bus       *events.Bus
	OpenLink  LinkOpener
	Selection Selection
	Log       *slog.Logger
}

// Palette colours draws that carry no material, in draw order.
var Palette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// PlaceholderSize is the edge length of the glyph drawn for a model that is
// not loaded.
const PlaceholderSize = 0.5

// ---------------------------------------------------------------------------
// Frame
// ---------------------------------------------------------------------------

// Draw is one world-space mesh drawn on its own.
type Draw struct {
	Node     graph.NodeID
	Name     string
	Mesh     *kernel.Mesh
	Color    string
	Material graph.Component // node material, nil when unset
	Asset    *assets.Material // material of a model mesh
	Selected bool
}

// Body is a rigid body handed to the physics step.
type Body struct {
	Node  graph.NodeID
	Kind  graph.BodyKind
	World tessellate.Mat4
	Model string // instanced model file, empty for plain nodes
}

// Placeholder marks a model that cannot be drawn yet, or at all.
type Placeholder struct {
	Node     graph.NodeID
	Filename string
	State    modelreg.State
	Mesh     *kernel.Mesh
	Selected bool
}

// Frame is the interpretation of one graph version.
type Frame struct {
	Mode         Mode
	Draws        []Draw
	Batches      []*batch.Batch
	Bodies       []Body
	Placeholders []Placeholder
	Selected     graph.NodeID
}

// DrawCalls counts the draws the frame needs.
func (f *Frame) DrawCalls() int {
	return len(f.Draws) + len(f.Batches) + len(f.Placeholders)
}

// DrawsFor returns the draws of one node.
func (f *Frame) DrawsFor(id graph.NodeID) []Draw {
	var out []Draw
	for _, d := range f.Draws {
		if d.Node == id {
			out = append(out, d)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// Interpreter renders graphs and resolves pointer input.
type Interpreter struct {
	ctx Context
}

// New returns an interpreter, filling unset collaborators with defaults.
func New(ctx Context) *Interpreter {
	if ctx.Log == nil {
		ctx.Log = slog.Default()
	}
	if ctx.Batcher == nil {
		ctx.Batcher = batch.NewRegistry(batch.WithLogger(ctx.Log))
	}
	if ctx.Mesher == nil {
		ctx.Mesher = tessellate.NewMesher(sdfx.New(sdfx.DefaultMeshCells))
	}
	if ctx.Bus == nil {
		ctx.Bus = events.NewBus()
	}
	if ctx.OpenLink == nil {
		ctx.OpenLink = browser.OpenURL
	}
	return &Interpreter{ctx: ctx}
}

// Mode returns the interpretation mode.
func (in *Interpreter) Mode() Mode { return in.ctx.Mode }

// SetMode switches between edit and play.
func (in *Interpreter) SetMode(m Mode) { in.ctx.Mode = m }

// Bus returns the event bus pointer events are emitted on.
func (in *Interpreter) Bus() *events.Bus { return in.ctx.Bus }

func (in *Interpreter) state(filename string) modelreg.State {
	if in.ctx.Models == nil {
		return modelreg.Unrequested
	}
	return in.ctx.Models.State(filename)
}

func (in *Interpreter) asset(filename string) *assets.Asset {
	if in.ctx.Models == nil || in.state(filename) != modelreg.Loaded {
		return nil
	}
	return in.ctx.Models.Asset(filename)
}

// Render interprets g. A selection naming a node that no longer exists is
// cleared first.
func (in *Interpreter) Render(g *graph.Graph) *Frame {
	f := &Frame{Mode: in.ctx.Mode}
	if g == nil {
		return f
	}
	if sel := in.ctx.Selection; sel != nil {
		if id := sel.Selected(); !id.IsZero() && !g.Has(id) {
			in.ctx.Log.Debug("clearing dangling selection", "node", id)
			sel.Select(graph.ZeroID)
		}
		f.Selected = sel.Selected()
	}
	r := &renderer{in: in, g: g, f: f, stack: tessellate.NewStack()}
	r.node(g.Root())
	if in.ctx.Mode == ModePlay {
		r.instances()
	}
	in.ctx.Log.Debug("rendered", "mode", f.Mode, "count", f.DrawCalls())
	return f
}

type renderer struct {
	in         *Interpreter
	g          *graph.Graph
	f          *Frame
	stack      *tessellate.Stack
	colours    int
	placements []batch.Placement
}

func (r *renderer) selected(id graph.NodeID) bool {
	return r.in.ctx.Mode == ModeEdit && !id.IsZero() && id == r.f.Selected
}

func (r *renderer) nextColour() string {
	c := Palette[r.colours%len(Palette)]
	r.colours++
	return c
}

// node pushes the node's transform, interprets its components, recurses
// into its children, then pops. Every box and model reference on a node is
// drawn; the node's first material colours all of its boxes.
func (r *renderer) node(n *graph.Node) {
	world := r.stack.Push(n.TransformOrIdentity())
	defer r.stack.Pop()

	play := r.in.ctx.Mode == ModePlay
	instanced := false
	for _, c := range n.Components {
		switch c := c.(type) {
		case graph.ModelRef:
			if play && c.Instanced {
				instanced = true
				r.placements = append(r.placements, batch.Placement{
					Node:     n.ID,
					Filename: c.Filename,
					Physics:  batch.PhysicsOf(n),
					World:    world,
				})
			} else {
				r.model(n, c, world)
			}
		case graph.BoxGeometry:
			r.box(n, c, world)
		}
	}
	if p, ok := graph.Find[graph.Physics](n); ok && play && !n.IsRoot() && !instanced {
		r.f.Bodies = append(r.f.Bodies, Body{Node: n.ID, Kind: p.Body, World: world})
	}

	for _, c := range r.g.Children(n) {
		r.node(c)
	}
}

func (r *renderer) box(n *graph.Node, box graph.BoxGeometry, world tessellate.Mat4) {
	local, err := r.in.ctx.Mesher.Box(box)
	if err != nil {
		r.in.ctx.Log.Warn("box not meshed", "node", n.ID, "err", err)
		return
	}
	d := Draw{Node: n.ID, Name: n.Name, Mesh: world.ApplyMesh(local), Selected: r.selected(n.ID)}
	switch m := materialOf(n).(type) {
	case graph.StandardMaterial:
		d.Material, d.Color = m, m.Color
	case graph.WaterMaterial:
		d.Material, d.Color = m, m.Color
	}
	if d.Color == "" {
		d.Color = r.nextColour()
	}
	r.f.Draws = append(r.f.Draws, d)
}

func materialOf(n *graph.Node) graph.Component {
	c, _ := graph.FindKind(n, graph.KindMaterial)
	return c
}

func (r *renderer) model(n *graph.Node, ref graph.ModelRef, world tessellate.Mat4) {
	a := r.in.asset(ref.Filename)
	if a == nil {
		r.placeholder(n.ID, ref.Filename, world)
		return
	}
	for i, m := range a.Meshes {
		mat := a.MaterialFor(i)
		r.f.Draws = append(r.f.Draws, Draw{
			Node:     n.ID,
			Name:     n.Name,
			Mesh:     world.ApplyMesh(m),
			Color:    hexColour(mat.Color),
			Asset:    &mat,
			Selected: r.selected(n.ID),
		})
	}
}

func (r *renderer) placeholder(id graph.NodeID, filename string, world tessellate.Mat4) {
	p := Placeholder{Node: id, Filename: filename, State: r.in.state(filename), Selected: r.selected(id)}
	glyph, err := r.in.ctx.Mesher.Box(graph.BoxGeometry{Width: PlaceholderSize, Height: PlaceholderSize, Depth: PlaceholderSize})
	if err == nil {
		p.Mesh = world.ApplyMesh(glyph)
	}
	if p.State == modelreg.Failed {
		r.in.ctx.Log.Debug("missing asset", "node", id, "file", filename)
	}
	r.f.Placeholders = append(r.f.Placeholders, p)
}

// instances groups the instanced placements collected during the walk. Batched
// and single instances with physics each get a body.
func (r *renderer) instances() {
	if len(r.placements) == 0 {
		return
	}
	res := r.in.ctx.Batcher.Build(r.placements, r.in.asset)
	r.f.Batches = res.Batches
	for _, b := range res.Batches {
		for _, p := range b.Instances {
			r.body(p)
		}
	}
	for _, s := range res.Singles {
		for i, m := range s.WorldMeshes() {
			mat := s.Asset.MaterialFor(i)
			r.f.Draws = append(r.f.Draws, Draw{
				Node:  s.Node,
				Name:  r.g.FindByID(s.Node).Name,
				Mesh:  m,
				Color: hexColour(mat.Color),
				Asset: &mat,
			})
		}
		r.body(s.Placement)
	}
	for _, p := range res.Missing {
		r.placeholder(p.Node, p.Filename, p.World)
	}
}

func (r *renderer) body(p batch.Placement) {
	if p.Physics == batch.PhysicsNone {
		return
	}
	kind := graph.BodyFixed
	if p.Physics == batch.PhysicsDynamic {
		kind = graph.BodyDynamic
	}
	r.f.Bodies = append(r.f.Bodies, Body{Node: p.Node, Kind: kind, World: p.World, Model: p.Filename})
}

// hexColour formats an RGBA colour as #RRGGBB.
func hexColour(c [4]float32) string {
	b := func(v float32) int { return int(min(max(v, 0), 1)*255 + 0.5) }
	return fmt.Sprintf("#%02X%02X%02X", b(c[0]), b(c[1]), b(c[2]))
}
