package history

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/arbor/pkg/graph"
)

// rename returns a new version of g with the root renamed.
func rename(g *graph.Graph, name string) *graph.Graph {
	return g.Update(g.RootID(), func(n *graph.Node) { n.Name = name })
}

func TestUndoRedoInverse(t *testing.T) {
	g0 := graph.New("Root")
	m := New(Snapshot{Graph: g0}, WithDebounce(time.Hour))

	g1 := rename(g0, "A")
	m.SaveState(Snapshot{Graph: g0})
	m.Observe(Snapshot{Graph: g1})

	s, ok := m.Undo()
	require.True(t, ok)
	assert.Same(t, g0, s.Graph)

	s, ok = m.Redo()
	require.True(t, ok)
	assert.Same(t, g1, s.Graph)

	_, ok = m.Redo()
	assert.False(t, ok, "redo at the tail is a no-op")
}

func TestUndoAtStart(t *testing.T) {
	m := New(Snapshot{Graph: graph.New("Root")})
	s, ok := m.Undo()
	assert.False(t, ok)
	assert.True(t, s.IsZero())
	assert.False(t, m.CanUndo())
	assert.False(t, m.CanRedo())
}

func TestSaveStateSkipsIdenticalTop(t *testing.T) {
	g := graph.New("Root")
	m := New(Snapshot{Graph: g})
	m.SaveState(Snapshot{Graph: g})
	m.SaveState(Snapshot{Graph: g})
	assert.Equal(t, 1, m.Len())

	m.SaveState(Snapshot{Graph: g, Selected: g.RootID()})
	assert.Equal(t, 1, m.Len(), "a selection change alone is not a step")
	assert.Equal(t, g.RootID(), m.Current().Selected)
}

func TestSaveStateTruncatesRedo(t *testing.T) {
	g0 := graph.New("Root")
	g1 := rename(g0, "A")
	g2 := rename(g1, "B")
	g3 := rename(g0, "C")

	m := New(Snapshot{Graph: g0})
	m.SaveState(Snapshot{Graph: g1})
	m.SaveState(Snapshot{Graph: g2})
	_, _ = m.Undo()
	_, _ = m.Undo()
	require.Equal(t, 0, m.Index())

	m.SaveState(Snapshot{Graph: g3})
	assert.Equal(t, 2, m.Len())
	assert.False(t, m.CanRedo())
	assert.Same(t, g3, m.Current().Graph)
}

func TestHistoryBound(t *testing.T) {
	g := graph.New("Root")
	m := New(Snapshot{Graph: g}, WithLimit(5))
	var versions []*graph.Graph
	for i := 0; i < 12; i++ {
		g = rename(g, "v")
		versions = append(versions, g)
		m.SaveState(Snapshot{Graph: g})
	}
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, 4, m.Index())

	// The oldest retained snapshot is the fifth from the end.
	for i := 0; i < 4; i++ {
		_, ok := m.Undo()
		require.True(t, ok)
	}
	assert.Same(t, versions[len(versions)-5], m.Current().Graph)
	_, ok := m.Undo()
	assert.False(t, ok)
}

func TestLimitFloor(t *testing.T) {
	m := New(Snapshot{Graph: graph.New("Root")}, WithLimit(0))
	assert.Equal(t, 2, m.Limit())
}

func TestObserveCoalesces(t *testing.T) {
	g0 := graph.New("Root")
	m := New(Snapshot{Graph: g0}, WithDebounce(20*time.Millisecond))

	g := g0
	for _, name := range []string{"R", "Ro", "Roo", "Room"} {
		g = rename(g, name)
		m.Observe(Snapshot{Graph: g})
	}
	assert.True(t, m.Pending())
	require.Eventually(t, func() bool { return !m.Pending() }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, m.Len(), "a burst of observed edits is one step")
	s, ok := m.Undo()
	require.True(t, ok)
	assert.Same(t, g0, s.Graph)
}

func TestUndoFlushesPending(t *testing.T) {
	g0 := graph.New("Root")
	m := New(Snapshot{Graph: g0}, WithDebounce(time.Hour))
	g1 := rename(g0, "A")
	m.Observe(Snapshot{Graph: g1})
	assert.True(t, m.CanUndo())

	s, ok := m.Undo()
	require.True(t, ok)
	assert.Same(t, g0, s.Graph)
	assert.False(t, m.Pending())

	s, ok = m.Redo()
	require.True(t, ok)
	assert.Same(t, g1, s.Graph)
}

func TestFlush(t *testing.T) {
	g0 := graph.New("Root")
	m := New(Snapshot{Graph: g0}, WithDebounce(time.Hour))
	assert.False(t, m.Flush())
	m.Observe(Snapshot{Graph: rename(g0, "A")})
	assert.True(t, m.Flush())
	assert.Equal(t, 2, m.Len())
}

func TestSchedulerReceivesCommit(t *testing.T) {
	var mu sync.Mutex
	var queued []func()
	post := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		queued = append(queued, fn)
	}
	g0 := graph.New("Root")
	m := New(Snapshot{Graph: g0}, WithDebounce(5*time.Millisecond), WithScheduler(post))
	m.Observe(Snapshot{Graph: rename(g0, "A")})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(queued) == 1
	}, time.Second, 2*time.Millisecond)
	assert.True(t, m.Pending(), "commit waits for the scheduler")

	mu.Lock()
	fn := queued[0]
	mu.Unlock()
	fn()
	assert.False(t, m.Pending())
	assert.Equal(t, 2, m.Len())
}

func TestReset(t *testing.T) {
	g0 := graph.New("Root")
	m := New(Snapshot{Graph: g0}, WithDebounce(time.Hour))
	m.SaveState(Snapshot{Graph: rename(g0, "A")})
	m.Observe(Snapshot{Graph: rename(g0, "B")})

	g := graph.New("Other")
	m.Reset(Snapshot{Graph: g})
	assert.Equal(t, 1, m.Len())
	assert.False(t, m.Pending())
	assert.Same(t, g, m.Current().Graph)
}
