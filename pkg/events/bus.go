// Package events carries scene-level notifications from the interpreter to
// consumers: named events raised by pointer interaction in play mode, and
// selection changes from the editor.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/arbor/pkg/graph"
)

// SceneEvent is a named event raised by a node.
type SceneEvent struct {
	ID     uuid.UUID
	Name   string
	Source graph.NodeID
	At     time.Time
}

// NewSceneEvent returns an event with a fresh id stamped now.
func NewSceneEvent(name string, source graph.NodeID) SceneEvent {
	return SceneEvent{ID: uuid.New(), Name: name, Source: source, At: time.Now()}
}

// SelectionChange reports a new selection. A zero id means nothing.
type SelectionChange struct {
	Previous graph.NodeID
	Current  graph.NodeID
}

// Bus fans events out to subscribers. Handlers run synchronously on the
// emitting goroutine in subscription order.
type Bus struct {
	mu        sync.Mutex
	next      int
	scene     map[int]func(SceneEvent)
	selection map[int]func(SelectionChange)
	order     []int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		scene:     make(map[int]func(SceneEvent)),
		selection: make(map[int]func(SelectionChange)),
	}
}

func (b *Bus) add(register func(id int)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	register(id)
	b.order = append(b.order, id)
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.scene, id)
			delete(b.selection, id)
		})
	}
}

// Subscribe registers fn for scene events and returns a function that
// removes it.
func (b *Bus) Subscribe(fn func(SceneEvent)) (unsubscribe func()) {
	return b.add(func(id int) { b.scene[id] = fn })
}

// SubscribeSelection registers fn for selection changes.
func (b *Bus) SubscribeSelection(fn func(SelectionChange)) (unsubscribe func()) {
	return b.add(func(id int) { b.selection[id] = fn })
}

// Channel returns a channel receiving scene events. Sends never block: an
// event is dropped for this channel when its buffer is full.
func (b *Bus) Channel(buffer int) (<-chan SceneEvent, func()) {
	ch := make(chan SceneEvent, max(buffer, 1))
	unsub := b.Subscribe(func(e SceneEvent) {
		select {
		case ch <- e:
		default:
		}
	})
	return ch, unsub
}

// Emit delivers e to every scene subscriber.
func (b *Bus) Emit(e SceneEvent) {
	for _, fn := range snapshot(b, func(id int) (func(SceneEvent), bool) {
		fn, ok := b.scene[id]
		return fn, ok
	}) {
		fn(e)
	}
}

// EmitSelection delivers c to every selection subscriber.
func (b *Bus) EmitSelection(c SelectionChange) {
	for _, fn := range snapshot(b, func(id int) (func(SelectionChange), bool) {
		fn, ok := b.selection[id]
		return fn, ok
	}) {
		fn(c)
	}
}

// snapshot copies the live handlers so they run without the lock held and
// may unsubscribe themselves.
func snapshot[F any](b *Bus, get func(int) (F, bool)) []F {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []F
	live := b.order[:0]
	for _, id := range b.order {
		_, s := b.scene[id]
		_, c := b.selection[id]
		if !s && !c {
			continue
		}
		live = append(live, id)
		if fn, ok := get(id); ok {
			out = append(out, fn)
		}
	}
	b.order = live
	return out
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.scene) + len(b.selection)
}
