// Package editor implements the structural editing algebra over a scene
// graph: add, delete, duplicate, move and drag-and-drop reordering, plus
// field edits and selection. Every operation is total: when a precondition
// fails it is a silent no-op that leaves the graph pointer unchanged.
package editor

import (
	"log/slog"

	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/history"
)

// Option configures a Controller.
type Option func(*Controller)

// WithHistory uses h instead of a default history. The history is reset
// to the controller's initial graph.
func WithHistory(h *history.Manager) Option {
	return func(c *Controller) { c.hist = h }
}

// WithDropPolicy sets the drag-and-drop thresholds.
func WithDropPolicy(p DropPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller owns the current graph and selection. It is not safe for
// concurrent use; drive it from the owning event loop.
type Controller struct {
	g        *graph.Graph
	selected graph.NodeID
	hist     *history.Manager
	policy   DropPolicy
	log      *slog.Logger

	onChange []func(*graph.Graph)
	onSelect []func(prev, next graph.NodeID)
}

// New returns a controller editing g.
func New(g *graph.Graph, opts ...Option) *Controller {
	c := &Controller{
		g:      g,
		policy: DefaultDropPolicy(),
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.hist == nil {
		c.hist = history.New(c.snapshot())
	} else {
		c.hist.Reset(c.snapshot())
	}
	return c
}

// OnChange registers fn to run after every change of the current graph,
// including undo, redo and Replace.
func (c *Controller) OnChange(fn func(*graph.Graph)) {
	c.onChange = append(c.onChange, fn)
}

// OnSelect registers fn to run whenever the selection changes.
func (c *Controller) OnSelect(fn func(prev, next graph.NodeID)) {
	c.onSelect = append(c.onSelect, fn)
}

// Graph returns the current graph.
func (c *Controller) Graph() *graph.Graph { return c.g }

// Selected returns the selected node id, or zero.
func (c *Controller) Selected() graph.NodeID { return c.selected }

// History returns the history manager.
func (c *Controller) History() *history.Manager { return c.hist }

// Policy returns the drop policy.
func (c *Controller) Policy() DropPolicy { return c.policy }

func (c *Controller) snapshot() history.Snapshot {
	return history.Snapshot{Graph: c.g, Selected: c.selected}
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// Select selects id. A zero id clears the selection; an unknown id is
// rejected.
func (c *Controller) Select(id graph.NodeID) bool {
	if !id.IsZero() && !c.g.Has(id) {
		return false
	}
	c.setSelected(id)
	return true
}

func (c *Controller) setSelected(id graph.NodeID) {
	if id == c.selected {
		return
	}
	prev := c.selected
	c.selected = id
	for _, fn := range c.onSelect {
		fn(prev, id)
	}
}

// ClearDangling clears a selection that no longer names a node in the
// current graph. It reports whether it did.
func (c *Controller) ClearDangling() bool {
	if c.selected.IsZero() || c.g.Has(c.selected) {
		return false
	}
	c.log.Debug("selection cleared", "node", c.selected)
	c.setSelected(graph.ZeroID)
	return true
}

// ---------------------------------------------------------------------------
// Checkpointing
// ---------------------------------------------------------------------------

// checkpoint records the pre-mutation state. Structural edits always do;
// field edits only when no coalesced edit is pending, so a burst of field
// edits undoes as one step.
func (c *Controller) checkpoint(field bool) {
	if field && c.hist.Pending() {
		return
	}
	c.hist.SaveState(c.snapshot())
}

// apply installs next as the current graph after a successful edit.
func (c *Controller) apply(next *graph.Graph, field bool) {
	c.checkpoint(field)
	c.g = next
	c.ClearDangling()
	c.hist.Observe(c.snapshot())
	c.changed()
}

func (c *Controller) changed() {
	for _, fn := range c.onChange {
		fn(c.g)
	}
}

// restore installs a snapshot from history.
func (c *Controller) restore(s history.Snapshot) {
	c.g = s.Graph
	sel := s.Selected
	if !c.g.Has(sel) {
		sel = graph.ZeroID
	}
	c.setSelected(sel)
	c.changed()
}

// Undo restores the previous snapshot. It reports false at the start of
// history.
func (c *Controller) Undo() bool {
	s, ok := c.hist.Undo()
	if !ok {
		return false
	}
	c.restore(s)
	return true
}

// Redo restores the next snapshot. It reports false at the end of history.
func (c *Controller) Redo() bool {
	s, ok := c.hist.Redo()
	if !ok {
		return false
	}
	c.restore(s)
	return true
}

// Replace loads a whole new graph, clearing the selection and starting a
// fresh history.
func (c *Controller) Replace(g *graph.Graph) {
	c.g = g
	c.setSelected(graph.ZeroID)
	c.hist.Reset(c.snapshot())
	c.changed()
}

// ---------------------------------------------------------------------------
// Structural edits
// ---------------------------------------------------------------------------

// AddChild appends a node built from t under parentID and returns its id,
// or zero when the parent does not exist.
func (c *Controller) AddChild(parentID graph.NodeID, t graph.Template) graph.NodeID {
	if !c.g.Has(parentID) {
		return graph.ZeroID
	}
	sub := c.g.Instantiate(t)
	next, ok := c.g.Insert(parentID, -1, sub)
	if !ok {
		return graph.ZeroID
	}
	c.log.Debug("add child", "node", sub.Root, "parent", parentID)
	c.apply(next, false)
	return sub.Root
}

// DeleteNode removes the subtree rooted at id. The root cannot be deleted.
func (c *Controller) DeleteNode(id graph.NodeID) bool {
	next, sub := c.g.RemoveByID(id)
	if sub == nil {
		return false
	}
	c.log.Debug("delete", "node", id, "count", sub.Len())
	c.apply(next, false)
	return true
}

// DuplicateNode deep-clones the subtree rooted at id with fresh ids and
// inserts the clone as the next sibling. It returns the clone's id, or
// zero for the root and unknown ids.
func (c *Controller) DuplicateNode(id graph.NodeID) graph.NodeID {
	n := c.g.FindByID(id)
	if n == nil || n.IsRoot() {
		return graph.ZeroID
	}
	sub := c.g.CloneSubtree(id)
	next, ok := c.g.Insert(n.Parent, c.g.IndexOf(id)+1, sub)
	if !ok {
		return graph.ZeroID
	}
	c.log.Debug("duplicate", "node", id, "clone", sub.Root, "count", sub.Len())
	c.apply(next, false)
	return sub.Root
}

// MoveNode detaches id and reinserts it under newParentID. Into appends to
// the new parent; Before and After place it next to refID, which must be
// a child of newParentID. Moves that would create a cycle, move the root,
// name missing nodes or leave the node where it is are rejected.
func (c *Controller) MoveNode(id, newParentID graph.NodeID, pos Position, refID graph.NodeID) bool {
	next, ok := move(c.g, id, newParentID, pos, refID)
	if !ok {
		return false
	}
	c.log.Debug("move", "node", id, "parent", newParentID, "position", pos.String())
	c.apply(next, false)
	return true
}

func move(g *graph.Graph, id, newParentID graph.NodeID, pos Position, refID graph.NodeID) (*graph.Graph, bool) {
	n := g.FindByID(id)
	if n == nil || n.IsRoot() || !g.Has(newParentID) {
		return g, false
	}
	// newParentID inside the moved subtree would make the node its own
	// ancestor.
	if g.IsDescendant(newParentID, id) {
		return g, false
	}
	if pos != Into {
		ref := g.FindByID(refID)
		if ref == nil || ref.Parent != newParentID || g.IsDescendant(refID, id) {
			return g, false
		}
	}

	removed, sub := g.RemoveByID(id)
	if sub == nil {
		return g, false
	}
	index := -1
	switch pos {
	case Before:
		index = removed.IndexOf(refID)
	case After:
		index = removed.IndexOf(refID) + 1
	case Into:
	default:
		return g, false
	}
	if index < 0 {
		index = len(removed.FindByID(newParentID).Children)
	}
	if newParentID == n.Parent && index == g.IndexOf(id) {
		return g, false
	}
	return removed.Insert(newParentID, index, sub)
}

// Drop resolves a drag of draggedID onto the row of targetID through the
// drop policy and performs the move. Dropping before or after the root
// drops into it.
func (c *Controller) Drop(draggedID, targetID graph.NodeID, offsetY, rowHeight float64) bool {
	target := c.g.FindByID(targetID)
	if target == nil {
		return false
	}
	pos := c.policy.Resolve(offsetY, rowHeight)
	if pos == Into || target.IsRoot() {
		return c.MoveNode(draggedID, targetID, Into, graph.ZeroID)
	}
	return c.MoveNode(draggedID, target.Parent, pos, targetID)
}

// ---------------------------------------------------------------------------
// Field edits
// ---------------------------------------------------------------------------

// RenameNode sets the node's name.
func (c *Controller) RenameNode(id graph.NodeID, name string) bool {
	n := c.g.FindByID(id)
	if n == nil || n.Name == name {
		return false
	}
	c.apply(c.g.Update(id, func(n *graph.Node) { n.Name = name }), true)
	return true
}

// SetTransform applies patch to the node's transform.
func (c *Controller) SetTransform(id graph.NodeID, patch graph.TransformPatch) bool {
	n := c.g.FindByID(id)
	if n == nil {
		return false
	}
	t := patch.Apply(n.TransformOrIdentity())
	if n.Transform != nil && *n.Transform == t {
		return false
	}
	if n.Transform == nil && t.IsIdentity() {
		return false
	}
	c.apply(c.g.Update(id, func(n *graph.Node) { n.Transform = &t }), true)
	return true
}

// AddComponent appends a copy of comp to the node's components.
func (c *Controller) AddComponent(id graph.NodeID, comp graph.Component) bool {
	if comp == nil || !c.g.Has(id) {
		return false
	}
	comp = graph.CloneComponent(comp)
	c.apply(c.g.Update(id, func(n *graph.Node) {
		n.Components = append(n.Components, comp)
	}), false)
	return true
}

// RemoveComponent removes the component at index.
func (c *Controller) RemoveComponent(id graph.NodeID, index int) bool {
	n := c.g.FindByID(id)
	if n == nil || index < 0 || index >= len(n.Components) {
		return false
	}
	c.apply(c.g.Update(id, func(n *graph.Node) {
		n.Components = append(n.Components[:index], n.Components[index+1:]...)
	}), false)
	return true
}
