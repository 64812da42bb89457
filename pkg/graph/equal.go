package graph

import "reflect"

// Equal reports whether a and b describe the same tree: same ids, names,
// transforms, components and child order, regardless of version or
// lineage.
func Equal(a, b *Graph) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Len() != b.Len() {
		return false
	}
	return subtreeEqual(a, b, a.Root(), b.Root())
}

func subtreeEqual(ga, gb *Graph, a, b *Node) bool {
	if !NodeEqual(a, b) {
		return false
	}
	for i := range a.Children {
		if !subtreeEqual(ga, gb, ga.FindByID(a.Children[i]), gb.FindByID(b.Children[i])) {
			return false
		}
	}
	return true
}

// NodeEqual compares two nodes field by field, including child ids.
func NodeEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Name != b.Name || a.Parent != b.Parent {
		return false
	}
	if len(a.Children) != len(b.Children) || len(a.Components) != len(b.Components) {
		return false
	}
	for i := range a.Children {
		if a.Children[i] != b.Children[i] {
			return false
		}
	}
	if (a.Transform == nil) != (b.Transform == nil) {
		return false
	}
	if a.Transform != nil && *a.Transform != *b.Transform {
		return false
	}
	for i := range a.Components {
		if !ComponentEqual(a.Components[i], b.Components[i]) {
			return false
		}
	}
	return true
}

// ComponentEqual compares two components. A nil and an empty Extra map are
// equal.
func ComponentEqual(a, b Component) bool {
	ma, okA := a.(StandardMaterial)
	mb, okB := b.(StandardMaterial)
	if okA && okB {
		if len(ma.Extra) == 0 && len(mb.Extra) == 0 {
			ma.Extra, mb.Extra = nil, nil
		}
		return reflect.DeepEqual(ma, mb)
	}
	return reflect.DeepEqual(a, b)
}
