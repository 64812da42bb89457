package graph

import "testing"

func TestArenaSetGet(t *testing.T) {
	var a arena
	ids := []NodeID{1, 2, 31, 32, 33, 1023, 1024, 40000}
	for _, id := range ids {
		a = a.set(id, &Node{ID: id})
	}
	if a.size != len(ids) {
		t.Fatalf("size = %d, want %d", a.size, len(ids))
	}
	for _, id := range ids {
		n := a.get(id)
		if n == nil || n.ID != id {
			t.Errorf("get(%d) = %v, want node %d", id, n, id)
		}
	}
	if a.get(5) != nil {
		t.Error("get of an unset id should be nil")
	}
	if a.get(1 << 40) != nil {
		t.Error("get beyond capacity should be nil")
	}
}

func TestArenaPersistence(t *testing.T) {
	var a arena
	for id := NodeID(1); id <= 100; id++ {
		a = a.set(id, &Node{ID: id, Name: "v1"})
	}
	b := a.set(50, &Node{ID: 50, Name: "v2"})
	c := b.set(7, nil)

	if got := a.get(50).Name; got != "v1" {
		t.Errorf("old version changed: name = %q, want v1", got)
	}
	if got := b.get(50).Name; got != "v2" {
		t.Errorf("new version name = %q, want v2", got)
	}
	if a.get(7) == nil || b.get(7) == nil {
		t.Error("deleting from c must not affect a or b")
	}
	if c.get(7) != nil {
		t.Error("deleted id still present")
	}
	if c.size != 99 || b.size != 100 {
		t.Errorf("sizes = %d/%d, want 99/100", c.size, b.size)
	}
	// Untouched leaves are shared, not copied.
	if a.get(99) != b.get(99) {
		t.Error("unchanged nodes should be shared between versions")
	}
}

func TestArenaDeleteMissing(t *testing.T) {
	var a arena
	a = a.set(3, &Node{ID: 3})
	b := a.set(4000, nil)
	if b.size != 1 || b.get(3) == nil {
		t.Errorf("deleting an absent id changed the arena: size %d", b.size)
	}
}

func TestArenaEachOrdered(t *testing.T) {
	var a arena
	for _, id := range []NodeID{70, 3, 1500, 9} {
		a = a.set(id, &Node{ID: id})
	}
	var got []NodeID
	a.each(func(n *Node) { got = append(got, n.ID) })
	want := []NodeID{3, 9, 70, 1500}
	if len(got) != len(want) {
		t.Fatalf("each visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("each[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
