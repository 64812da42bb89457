package graph

import (
	"errors"
	"fmt"
)

// Template is an id-less description of a node and its descendants. The
// editor inserts templates; the scene DSL and presets build whole graphs
// from them.
type Template struct {
	Name       string
	Transform  *Transform
	Components []Component
	Children   []Template
}

// NewTemplate returns a childless template.
func NewTemplate(name string, comps ...Component) Template {
	return Template{Name: name, Components: comps}
}

func (t Template) instantiate(ids *IDSource) *Subtree {
	sub := &Subtree{Nodes: make(map[NodeID]*Node)}
	sub.Root = t.place(ids, ZeroID, sub)
	return sub
}

func (t Template) place(ids *IDSource, parent NodeID, sub *Subtree) NodeID {
	n := &Node{ID: ids.Next(), Name: t.Name, Parent: parent}
	if t.Transform != nil {
		tr := *t.Transform
		n.Transform = &tr
	}
	for _, c := range t.Components {
		n.Components = append(n.Components, CloneComponent(c))
	}
	for _, ct := range t.Children {
		n.Children = append(n.Children, ct.place(ids, n.ID, sub))
	}
	sub.Nodes[n.ID] = n
	return n.ID
}

// Build creates a new graph whose root is described by t.
func Build(t Template) *Graph {
	ids := &IDSource{}
	sub := t.instantiate(ids)
	g := &Graph{ids: ids, root: sub.Root}
	for id, n := range sub.Nodes {
		g.nodes = g.nodes.set(id, n)
	}
	return g
}

// ErrBuild is wrapped by every Builder failure.
var ErrBuild = errors.New("graph: invalid build")

// Builder reassembles a graph from nodes with explicit ids, as read from a
// saved document. Parents must be added before their children; children are
// ordered by insertion.
type Builder struct {
	nodes map[NodeID]*Node
	root  NodeID
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[NodeID]*Node)}
}

// Add inserts n under parent. A zero parent makes n the root. The node's
// Parent and Children fields are ignored.
func (b *Builder) Add(parent NodeID, n Node) error {
	switch {
	case n.ID.IsZero():
		return fmt.Errorf("%w: node %q has no id", ErrBuild, n.Name)
	case n.ID > MaxID:
		return fmt.Errorf("%w: id %s exceeds %s", ErrBuild, n.ID.Short(), MaxID.Short())
	case b.nodes[n.ID] != nil:
		return fmt.Errorf("%w: duplicate id %s", ErrBuild, n.ID.Short())
	}
	n.Parent = parent
	n.Children = nil
	if parent.IsZero() {
		if !b.root.IsZero() {
			return fmt.Errorf("%w: second root %s", ErrBuild, n.ID.Short())
		}
		b.root = n.ID
	} else {
		p := b.nodes[parent]
		if p == nil {
			return fmt.Errorf("%w: node %s has unknown parent %s", ErrBuild, n.ID.Short(), parent.Short())
		}
		p.Children = append(p.Children, n.ID)
	}
	b.nodes[n.ID] = &n
	return nil
}

// Graph returns the assembled graph. The id source is primed past the
// largest id so new nodes never collide with loaded ones.
func (b *Builder) Graph() (*Graph, error) {
	if b.root.IsZero() {
		return nil, fmt.Errorf("%w: no root", ErrBuild)
	}
	g := &Graph{ids: &IDSource{}, root: b.root}
	for id, n := range b.nodes {
		g.nodes = g.nodes.set(id, n)
		g.ids.reserve(id)
	}
	return g, nil
}
