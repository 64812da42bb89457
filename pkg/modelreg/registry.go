// Package modelreg tracks the load state of every model file the scene
// references. Loads run in the background; their results come back as
// messages that the owning goroutine applies, so entry state only ever
// changes on the owner's schedule.
package modelreg

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/chazu/arbor/pkg/assets"
	"github.com/chazu/arbor/pkg/graph"
)

// State is the lifecycle stage of a registry entry.
type State int

const (
	Unrequested State = iota // never requested
	Pending                  // load in flight, nothing loaded yet
	Loaded                   // asset available
	Failed                   // last load failed
)

func (s State) String() string {
	switch s {
	case Unrequested:
		return "unrequested"
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Entry is the registry's record for one filename. Entries are never
// removed; a reload replaces the asset when its result arrives.
type Entry struct {
	Filename string
	State    State
	Asset    *assets.Asset
	Err      error
	Requests int  // loads issued for this filename
	InFlight bool // a load is running
}

// Result is the completion message of one load.
type Result struct {
	Filename string
	Asset    *assets.Asset
	Err      error
	Elapsed  time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithContext sets the context passed to every load. Loads are never
// cancelled individually.
func WithContext(ctx context.Context) Option {
	return func(r *Registry) { r.ctx = ctx }
}

// WithResultBuffer sets the capacity of the results channel.
func WithResultBuffer(n int) Option {
	return func(r *Registry) { r.buffer = n }
}

// Registry maps filenames to load state.
type Registry struct {
	loader  assets.Loader
	ctx     context.Context
	log     *slog.Logger
	buffer  int
	results chan Result

	mu      sync.Mutex
	entries map[string]*Entry
	loads   int
	onApply []func(Result)
}

// New returns an empty registry loading through loader.
func New(loader assets.Loader, opts ...Option) *Registry {
	r := &Registry{
		loader:  loader,
		ctx:     context.Background(),
		log:     slog.Default(),
		buffer:  64,
		entries: make(map[string]*Entry),
	}
	for _, o := range opts {
		o(r)
	}
	r.results = make(chan Result, r.buffer)
	return r
}

// Request starts loading filename unless it is already pending, loaded or
// failed. It never blocks and reports whether a load was started.
func (r *Registry) Request(filename string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(filename)
	if e.InFlight || e.State != Unrequested {
		return false
	}
	r.startLocked(e)
	return true
}

// Reload loads filename again regardless of its state, unless a load is
// already in flight. A loaded entry keeps serving its old asset until the
// new result is applied.
func (r *Registry) Reload(filename string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(filename)
	if e.InFlight {
		return false
	}
	r.startLocked(e)
	return true
}

func (r *Registry) entry(filename string) *Entry {
	e, ok := r.entries[filename]
	if !ok {
		e = &Entry{Filename: filename}
		r.entries[filename] = e
	}
	return e
}

func (r *Registry) startLocked(e *Entry) {
	e.InFlight = true
	e.Requests++
	if e.State != Loaded {
		e.State = Pending
	}
	r.loads++
	r.log.Debug("model requested", "file", e.Filename, "count", e.Requests)

	filename := e.Filename
	go func() {
		start := time.Now()
		a, err := r.load(filename)
		if err == nil && a == nil {
			err = fmt.Errorf("modelreg: loader returned no asset for %s", filename)
		}
		r.results <- Result{Filename: filename, Asset: a, Err: err, Elapsed: time.Since(start)}
	}()
}

// load runs the loader, turning a panic into a load error.
func (r *Registry) load(filename string) (a *assets.Asset, err error) {
	defer func() {
		if p := recover(); p != nil {
			a, err = nil, fmt.Errorf("modelreg: loading %s panicked: %v", filename, p)
		}
	}()
	return r.loader.Load(r.ctx, filename)
}

// Results delivers load completions. The owner applies each one with
// Apply.
func (r *Registry) Results() <-chan Result { return r.results }

// OnApply registers fn to run after each applied result.
func (r *Registry) OnApply(fn func(Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onApply = append(r.onApply, fn)
}

// Apply transitions the entry named by res to Loaded or Failed.
func (r *Registry) Apply(res Result) {
	r.mu.Lock()
	e := r.entry(res.Filename)
	e.InFlight = false
	if res.Err != nil {
		e.State, e.Asset, e.Err = Failed, nil, res.Err
		r.log.Warn("model load failed", "file", res.Filename, "err", res.Err)
	} else {
		e.State, e.Asset, e.Err = Loaded, res.Asset, nil
		r.log.Debug("model loaded", "file", res.Filename, "elapsed", res.Elapsed)
	}
	hooks := slices.Clone(r.onApply)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(res)
	}
}

// Pump applies every result that is ready without blocking and returns
// how many it applied.
func (r *Registry) Pump() int {
	n := 0
	for {
		select {
		case res := <-r.results:
			r.Apply(res)
			n++
		default:
			return n
		}
	}
}

// Wait applies results until no load is in flight or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	for r.InFlight() > 0 {
		select {
		case res := <-r.results:
			r.Apply(res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Lookup returns a copy of the entry for filename.
func (r *Registry) Lookup(filename string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[filename]
	if !ok {
		return Entry{Filename: filename}, false
	}
	return *e, true
}

// State returns the state of filename; unknown filenames are Unrequested.
func (r *Registry) State(filename string) State {
	e, _ := r.Lookup(filename)
	return e.State
}

// Asset returns the loaded asset for filename, or nil.
func (r *Registry) Asset(filename string) *assets.Asset {
	e, _ := r.Lookup(filename)
	if e.State != Loaded {
		return nil
	}
	return e.Asset
}

// Entries returns copies of all entries ordered by filename.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := lo.Keys(r.entries)
	slices.Sort(names)
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		out = append(out, *r.entries[name])
	}
	return out
}

// InFlight returns the number of running loads.
func (r *Registry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.CountBy(lo.Values(r.entries), func(e *Entry) bool { return e.InFlight })
}

// Loads returns the total number of loads issued.
func (r *Registry) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// Referenced returns the sorted set of filenames referenced by any
// ModelRef in g. A file referenced many times appears once.
func Referenced(g *graph.Graph) []string {
	names := lo.FilterMap(g.ModelRefs(), func(m graph.ModelRef, _ int) (string, bool) {
		return m.Filename, m.Filename != ""
	})
	names = lo.Uniq(names)
	slices.Sort(names)
	return names
}

// ScanAndResolve requests every referenced filename that has never been
// requested and returns how many loads it started. Pending, loaded and
// failed entries are left alone, so a second scan of an unchanged graph
// starts nothing.
func (r *Registry) ScanAndResolve(g *graph.Graph) int {
	started := 0
	for _, name := range Referenced(g) {
		if r.Request(name) {
			started++
		}
	}
	if started > 0 {
		r.log.Debug("scan resolved", "count", started)
	}
	return started
}
