package graph

import (
	"fmt"
	"sync/atomic"
)

// DefaultRootName is the conventional name of the scene root.
const DefaultRootName = "Root"

// IDSource allocates node ids. Every graph derived from the same origin
// shares one source, so ids stay unique across undo, redo and duplication.
type IDSource struct {
	last atomic.Uint64
}

// Next returns a fresh id.
func (s *IDSource) Next() NodeID {
	return NodeID(s.last.Add(1))
}

// reserve makes sure ids up to and including id are never handed out.
func (s *IDSource) reserve(id NodeID) {
	for {
		cur := s.last.Load()
		if uint64(id) <= cur || s.last.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}

// Graph is an immutable scene tree. All edits return a new *Graph; an edit
// whose preconditions fail returns the receiver itself, so callers can detect
// non-progress by pointer comparison.
type Graph struct {
	nodes   arena
	root    NodeID
	ids     *IDSource
	version uint64
}

// New creates a graph holding only a root node with the given name.
func New(rootName string) *Graph {
	ids := &IDSource{}
	root := &Node{ID: ids.Next(), Name: rootName}
	g := &Graph{ids: ids, root: root.ID}
	g.nodes = g.nodes.set(root.ID, root)
	return g
}

// derive returns a copy of g sharing its arena and id source, one version
// ahead.
func (g *Graph) derive() *Graph {
	return &Graph{nodes: g.nodes, root: g.root, ids: g.ids, version: g.version + 1}
}

// IDs returns the id source shared by this graph's lineage.
func (g *Graph) IDs() *IDSource { return g.ids }

// RootID returns the id of the root node.
func (g *Graph) RootID() NodeID { return g.root }

// Root returns the root node.
func (g *Graph) Root() *Node { return g.nodes.get(g.root) }

// Version counts the edits that produced this graph from its origin.
func (g *Graph) Version() uint64 { return g.version }

// FindByID returns the node with the given id, or nil.
func (g *Graph) FindByID(id NodeID) *Node {
	if id.IsZero() {
		return nil
	}
	return g.nodes.get(id)
}

// Has reports whether the graph contains id.
func (g *Graph) Has(id NodeID) bool { return g.FindByID(id) != nil }

// Len returns the total number of nodes.
func (g *Graph) Len() int { return g.nodes.size }

// Lookup returns the first node with the given name in pre-order, or nil.
// Names are not unique; Lookup is a convenience for scripts and tests.
func (g *Graph) Lookup(name string) *Node {
	var found *Node
	g.Walk(func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found
}

// MustLookup returns the node with the given name, or panics.
func (g *Graph) MustLookup(name string) *Node {
	n := g.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return n
}

// Children returns the child nodes of n in order.
func (g *Graph) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := g.nodes.get(cid); c != nil {
			children = append(children, c)
		}
	}
	return children
}

// Parent returns the parent of id, or nil for the root and unknown ids.
func (g *Graph) Parent(id NodeID) *Node {
	n := g.FindByID(id)
	if n == nil {
		return nil
	}
	return g.FindByID(n.Parent)
}

// IndexOf returns the position of id among its siblings, or -1.
func (g *Graph) IndexOf(id NodeID) int {
	p := g.Parent(id)
	if p == nil {
		return -1
	}
	for i, c := range p.Children {
		if c == id {
			return i
		}
	}
	return -1
}

// IsDescendant reports whether id lies in the subtree rooted at of,
// including of itself.
func (g *Graph) IsDescendant(id, of NodeID) bool {
	for cur := g.FindByID(id); cur != nil; cur = g.FindByID(cur.Parent) {
		if cur.ID == of {
			return true
		}
	}
	return false
}

// Path returns the ids from the root down to id, or nil if id is unknown.
func (g *Graph) Path(id NodeID) []NodeID {
	var rev []NodeID
	for cur := g.FindByID(id); cur != nil; cur = g.FindByID(cur.Parent) {
		rev = append(rev, cur.ID)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// Nodes returns every node in ascending id order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, g.nodes.size)
	g.nodes.each(func(n *Node) { out = append(out, n) })
	return out
}
