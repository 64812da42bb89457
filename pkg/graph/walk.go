package graph

// WalkFunc is called for each visited node with its depth below the walk's
// starting node. Returning false skips the node's children.
type WalkFunc func(n *Node, depth int) bool

// Walk visits every node reachable from the root in pre-order.
func (g *Graph) Walk(fn WalkFunc) {
	g.WalkFrom(g.root, fn)
}

// WalkFrom visits the subtree rooted at id in pre-order. Unknown ids visit
// nothing.
func (g *Graph) WalkFrom(id NodeID, fn WalkFunc) {
	n := g.FindByID(id)
	if n == nil {
		return
	}
	g.walk(n, 0, fn)
}

func (g *Graph) walk(n *Node, depth int, fn WalkFunc) {
	if !fn(n, depth) {
		return
	}
	for _, cid := range n.Children {
		if c := g.nodes.get(cid); c != nil {
			g.walk(c, depth+1, fn)
		}
	}
}

// SubtreeIDs returns the ids of the subtree rooted at id in pre-order.
func (g *Graph) SubtreeIDs(id NodeID) []NodeID {
	var ids []NodeID
	g.WalkFrom(id, func(n *Node, _ int) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// ModelRefs returns every ModelRef component in the graph in pre-order,
// one entry per occurrence.
func (g *Graph) ModelRefs() []ModelRef {
	var refs []ModelRef
	g.Walk(func(n *Node, _ int) bool {
		for _, c := range n.Components {
			if m, ok := c.(ModelRef); ok {
				refs = append(refs, m)
			}
		}
		return true
	})
	return refs
}
