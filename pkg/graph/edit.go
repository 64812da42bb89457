package graph

import "sort"

// Subtree is a detached set of nodes rooted at Root. The root's Parent is
// zero until the subtree is inserted into a graph.
type Subtree struct {
	Root  NodeID
	Nodes map[NodeID]*Node
}

// Len returns the number of nodes in the subtree.
func (s *Subtree) Len() int { return len(s.Nodes) }

// RootNode returns the subtree's root node.
func (s *Subtree) RootNode() *Node { return s.Nodes[s.Root] }

// IDs returns the subtree's ids in ascending order.
func (s *Subtree) IDs() []NodeID {
	ids := make([]NodeID, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RemoveByID detaches the subtree rooted at id. It returns the new graph and
// the detached subtree, or the receiver and nil when id is unknown or is the
// root. Delete and move share this primitive.
func (g *Graph) RemoveByID(id NodeID) (*Graph, *Subtree) {
	n := g.FindByID(id)
	if n == nil || id == g.root {
		return g, nil
	}
	out := g.derive()
	sub := &Subtree{Root: id, Nodes: make(map[NodeID]*Node)}
	g.WalkFrom(id, func(d *Node, _ int) bool {
		sub.Nodes[d.ID] = d
		out.nodes = out.nodes.set(d.ID, nil)
		return true
	})
	detached := n.copy()
	detached.Parent = ZeroID
	sub.Nodes[id] = detached

	parent := g.nodes.get(n.Parent).copy()
	parent.Children = removeID(parent.Children, id)
	out.nodes = out.nodes.set(parent.ID, parent)
	return out, sub
}

// Insert attaches sub under parentID at index among its children. An index
// outside [0, len(children)] appends. Insert fails when the parent is unknown
// or any subtree id is already present.
func (g *Graph) Insert(parentID NodeID, index int, sub *Subtree) (*Graph, bool) {
	parent := g.FindByID(parentID)
	if parent == nil || sub == nil || sub.RootNode() == nil {
		return g, false
	}
	for id := range sub.Nodes {
		if g.Has(id) {
			return g, false
		}
	}
	out := g.derive()
	for id, n := range sub.Nodes {
		if id == sub.Root {
			n = n.copy()
			n.Parent = parentID
		}
		out.nodes = out.nodes.set(id, n)
		g.ids.reserve(id)
	}
	p := parent.copy()
	p.Children = insertID(p.Children, index, sub.Root)
	out.nodes = out.nodes.set(p.ID, p)
	return out, true
}

// Update applies fn to a copy of the node and stores the result. fn may
// change the name, transform and components; structural fields are
// restored afterwards.
func (g *Graph) Update(id NodeID, fn func(n *Node)) *Graph {
	n := g.FindByID(id)
	if n == nil {
		return g
	}
	c := n.copy()
	fn(c)
	c.ID, c.Parent, c.Children = n.ID, n.Parent, n.Children
	out := g.derive()
	out.nodes = out.nodes.set(id, c)
	return out
}

// MapSubtree applies fn to every node in the subtree rooted at id, storing
// the results in a new graph. Like Update, fn cannot change structure.
func (g *Graph) MapSubtree(id NodeID, fn func(n Node) Node) *Graph {
	if !g.Has(id) {
		return g
	}
	out := g.derive()
	g.WalkFrom(id, func(n *Node, _ int) bool {
		m := fn(*n.copy())
		m.ID, m.Parent, m.Children = n.ID, n.Parent, n.Children
		out.nodes = out.nodes.set(n.ID, &m)
		return true
	})
	return out
}

// CloneSubtree deep-copies the subtree rooted at id, giving every node a
// fresh id from the graph's id source. The clone is detached.
func (g *Graph) CloneSubtree(id NodeID) *Subtree {
	if !g.Has(id) {
		return nil
	}
	sub := &Subtree{Nodes: make(map[NodeID]*Node)}
	var clone func(n *Node, parent NodeID) NodeID
	clone = func(n *Node, parent NodeID) NodeID {
		c := n.copy()
		c.ID = g.ids.Next()
		c.Parent = parent
		for i, comp := range c.Components {
			c.Components[i] = CloneComponent(comp)
		}
		c.Children = c.Children[:0]
		for _, cid := range n.Children {
			if child := g.nodes.get(cid); child != nil {
				c.Children = append(c.Children, clone(child, c.ID))
			}
		}
		sub.Nodes[c.ID] = c
		return c.ID
	}
	sub.Root = clone(g.FindByID(id), ZeroID)
	return sub
}

// Instantiate allocates ids for a template tree from the graph's id source
// and returns it as a detached subtree.
func (g *Graph) Instantiate(t Template) *Subtree {
	return t.instantiate(g.ids)
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	out := make([]NodeID, 0, len(ids))
	for _, c := range ids {
		if c != id {
			out = append(out, c)
		}
	}
	return out
}

func insertID(ids []NodeID, index int, id NodeID) []NodeID {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	out := make([]NodeID, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	return append(out, ids[index:]...)
}
