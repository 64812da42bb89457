// Package history keeps a bounded, linear list of scene snapshots with a
// current index. Snapshots are cheap because graphs are persistent: a
// snapshot is a pointer to an immutable graph plus the selection.
//
// Two ways in: SaveState records a state immediately, and Observe records
// it after a quiet period so a burst of edits collapses into one step.
package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/chazu/arbor/pkg/graph"
)

const (
	// DefaultLimit is the number of snapshots retained.
	DefaultLimit = 50

	// DefaultDebounce is the quiet period before an observed state is
	// committed.
	DefaultDebounce = 500 * time.Millisecond
)

// Snapshot is an immutable (graph, selection) pair.
type Snapshot struct {
	Graph    *graph.Graph
	Selected graph.NodeID
}

// IsZero reports whether s holds no graph.
func (s Snapshot) IsZero() bool { return s.Graph == nil }


// Option configures a Manager.
type Option func(*Manager)

// WithLimit sets the number of retained snapshots. Values below 2 are
// raised to 2 so one undo step always fits.
func WithLimit(n int) Option {
	return func(m *Manager) { m.limit = max(n, 2) }
}

// WithDebounce sets the coalescing window used by Observe.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.window = d }
}

// WithScheduler makes debounced commits run through post, typically the
// owning event loop, instead of on the timer goroutine.
func WithScheduler(post func(func())) Option {
	return func(m *Manager) { m.post = post }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager is the undo/redo history. It is safe for concurrent use, though
// the editor drives it from a single goroutine.
type Manager struct {
	mu      sync.Mutex
	snaps   []Snapshot
	idx     int
	limit   int
	pending *Snapshot

	window    time.Duration
	debounced func(func())
	post      func(func())
	log       *slog.Logger
}

// New returns a history whose first entry is initial.
func New(initial Snapshot, opts ...Option) *Manager {
	m := &Manager{
		limit:  DefaultLimit,
		window: DefaultDebounce,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.debounced = debounce.New(m.window)
	m.snaps = []Snapshot{initial}
	return m
}

// Reset discards all history and starts again from s.
func (m *Manager) Reset(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = []Snapshot{s}
	m.idx = 0
	m.pending = nil
}

// SaveState records s as the newest state. It drops any redo branch,
// updates the current selection in place when s has the current graph, and
// evicts the oldest snapshots
// beyond the limit. A pending observed state is committed first.
func (m *Manager) SaveState(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
	m.push(s)
}

func (m *Manager) push(s Snapshot) {
	m.snaps = m.snaps[:m.idx+1]
	if m.snaps[m.idx].Graph == s.Graph {
		// Selection alone is not an undo step; the top takes the latest one.
		m.snaps[m.idx].Selected = s.Selected
		return
	}
	m.snaps = append(m.snaps, s)
	if over := len(m.snaps) - m.limit; over > 0 {
		m.snaps = append([]Snapshot(nil), m.snaps[over:]...)
		m.log.Debug("history evicted", "count", over)
	}
	m.idx = len(m.snaps) - 1
}

// Observe records s as pending and commits it once no further Observe call
// arrives within the debounce window.
func (m *Manager) Observe(s Snapshot) {
	m.mu.Lock()
	m.pending = &s
	m.mu.Unlock()
	m.debounced(m.fire)
}

func (m *Manager) fire() {
	if m.post != nil {
		m.post(func() { m.Flush() })
		return
	}
	m.Flush()
}

// Flush commits a pending observed state now. It reports whether there was
// one.
func (m *Manager) Flush() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

func (m *Manager) flushLocked() bool {
	if m.pending == nil {
		return false
	}
	s := *m.pending
	m.pending = nil
	m.push(s)
	return true
}

// Pending reports whether an observed state is waiting to be committed.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Undo commits any pending state, steps back and returns the snapshot at
// the new index. At the oldest entry it returns false.
func (m *Manager) Undo() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
	if m.idx == 0 {
		return Snapshot{}, false
	}
	m.idx--
	return m.snaps[m.idx], true
}

// Redo steps forward and returns the snapshot at the new index. At the
// newest entry it returns false.
func (m *Manager) Redo() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
	if m.idx >= len(m.snaps)-1 {
		return Snapshot{}, false
	}
	m.idx++
	return m.snaps[m.idx], true
}

// CanUndo reports whether Undo would move.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx > 0 || (m.pending != nil && m.snaps[m.idx].Graph != m.pending.Graph)
}

// CanRedo reports whether Redo would move.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending == nil && m.idx < len(m.snaps)-1
}

// Current returns the snapshot at the current index.
func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[m.idx]
}

// Len returns the number of retained snapshots.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

// Index returns the current index.
func (m *Manager) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx
}

// Limit returns the retention bound.
func (m *Manager) Limit() int { return m.limit }
