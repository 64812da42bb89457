package graph

// arenaBits is the fan-out exponent of the persistent trie that stores nodes.
const (
	arenaBits  = 5
	arenaWidth = 1 << arenaBits
	arenaMask  = arenaWidth - 1
)

// arenaTrie is one interior level of the trie. Slots hold *arenaTrie at
// interior levels and *Node at the leaf level.
type arenaTrie struct {
	slots [arenaWidth]any
}

// arena is a persistent map from NodeID to *Node. Ids are allocated densely
// from a counter, so a path-copying trie indexed by id bits gives O(log32 n)
// lookups and updates while sharing every untouched branch with the previous
// version.
type arena struct {
	root  *arenaTrie
	shift uint // bit offset of the root level
	size  int
}

// fits reports whether id is addressable at the current depth.
func (a arena) fits(id NodeID) bool {
	return uint64(id)>>(a.shift+arenaBits) == 0
}

func (a arena) get(id NodeID) *Node {
	if a.root == nil || !a.fits(id) {
		return nil
	}
	t := a.root
	for shift := a.shift; shift > 0; shift -= arenaBits {
		next, _ := t.slots[(uint64(id)>>shift)&arenaMask].(*arenaTrie)
		if next == nil {
			return nil
		}
		t = next
	}
	n, _ := t.slots[uint64(id)&arenaMask].(*Node)
	return n
}

// set returns a new arena with id bound to n. A nil n removes the binding.
func (a arena) set(id NodeID, n *Node) arena {
	if a.root == nil {
		if n == nil {
			return a
		}
		a.root = &arenaTrie{}
	}
	for !a.fits(id) {
		if n == nil {
			return a
		}
		grown := &arenaTrie{}
		grown.slots[0] = a.root
		a.root = grown
		a.shift += arenaBits
	}
	var had bool
	a.root, had = setIn(a.root, a.shift, id, n)
	switch {
	case had && n == nil:
		a.size--
	case !had && n != nil:
		a.size++
	}
	return a
}

// setIn copies the path from t to the slot for id and stores n there. It
// reports whether the slot was occupied before.
func setIn(t *arenaTrie, shift uint, id NodeID, n *Node) (*arenaTrie, bool) {
	c := &arenaTrie{}
	if t != nil {
		*c = *t
	}
	idx := (uint64(id) >> shift) & arenaMask
	if shift == 0 {
		old, _ := c.slots[idx].(*Node)
		if n == nil {
			c.slots[idx] = nil
		} else {
			c.slots[idx] = n
		}
		return c, old != nil
	}
	child, _ := c.slots[idx].(*arenaTrie)
	if child == nil && n == nil {
		return t, false
	}
	next, had := setIn(child, shift-arenaBits, id, n)
	c.slots[idx] = next
	return c, had
}

// each visits every stored node in ascending id order.
func (a arena) each(fn func(*Node)) {
	if a.root != nil {
		eachIn(a.root, a.shift, fn)
	}
}

func eachIn(t *arenaTrie, shift uint, fn func(*Node)) {
	for _, s := range t.slots {
		switch v := s.(type) {
		case *arenaTrie:
			eachIn(v, shift-arenaBits, fn)
		case *Node:
			fn(v)
		}
	}
}
