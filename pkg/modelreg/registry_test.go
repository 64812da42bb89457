package modelreg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/arbor/pkg/assets"
	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/kernel"
)

// fakeLoader counts calls per filename and fails names in fail.
type fakeLoader struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	gate  chan struct{}
}

func newFakeLoader(fail ...string) *fakeLoader {
	l := &fakeLoader{calls: make(map[string]int), fail: make(map[string]bool)}
	for _, f := range fail {
		l.fail[f] = true
	}
	return l
}

func (l *fakeLoader) Load(_ context.Context, filename string) (*assets.Asset, error) {
	l.mu.Lock()
	l.calls[filename]++
	gate := l.gate
	failing := l.fail[filename]
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if failing {
		return nil, errors.New("no such model")
	}
	return &assets.Asset{Filename: filename, Meshes: []*kernel.Mesh{{Vertices: []float32{0, 0, 0}}}}, nil
}

func (l *fakeLoader) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[name]
}

func wait(t *testing.T, r *Registry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func scene(files ...string) *graph.Graph {
	root := graph.Template{Name: graph.DefaultRootName}
	for _, f := range files {
		root.Children = append(root.Children, graph.NewTemplate(f, graph.ModelRef{Filename: f}))
	}
	return graph.Build(root)
}

func TestRequestLifecycle(t *testing.T) {
	l := newFakeLoader()
	l.gate = make(chan struct{})
	r := New(l)

	assert.Equal(t, Unrequested, r.State("desk.glb"))
	require.True(t, r.Request("desk.glb"))
	assert.Equal(t, Pending, r.State("desk.glb"))
	assert.False(t, r.Request("desk.glb"), "in-flight requests are deduplicated")
	assert.Nil(t, r.Asset("desk.glb"))

	close(l.gate)
	wait(t, r)
	assert.Equal(t, Loaded, r.State("desk.glb"))
	assert.NotNil(t, r.Asset("desk.glb"))
	assert.False(t, r.Request("desk.glb"), "loaded entries are not requested again")
	assert.Equal(t, 1, l.count("desk.glb"))
}

func TestFailedIsRetained(t *testing.T) {
	l := newFakeLoader("missing.glb")
	r := New(l)
	r.Request("missing.glb")
	wait(t, r)

	e, ok := r.Lookup("missing.glb")
	require.True(t, ok)
	assert.Equal(t, Failed, e.State)
	assert.Error(t, e.Err)
	assert.Nil(t, r.Asset("missing.glb"))

	assert.Equal(t, 0, r.ScanAndResolve(scene("missing.glb")), "failed loads are not retried by a scan")
	assert.Equal(t, 1, l.count("missing.glb"))
}

func TestScanAndResolveIdempotent(t *testing.T) {
	l := newFakeLoader()
	r := New(l)
	g := scene("desk.glb", "lamp.glb", "desk.glb", "desk.glb")

	assert.Equal(t, 2, r.ScanAndResolve(g), "each filename is requested once")
	assert.Equal(t, 0, r.ScanAndResolve(g), "second scan while pending starts nothing")
	wait(t, r)
	assert.Equal(t, 0, r.ScanAndResolve(g), "second scan when loaded starts nothing")
	assert.Equal(t, 2, r.Loads())
	assert.Equal(t, 1, l.count("desk.glb"))
}

func TestReferenced(t *testing.T) {
	g := scene("b.glb", "a.glb", "b.glb")
	g2, _ := g.Insert(g.RootID(), -1, g.Instantiate(graph.NewTemplate("empty", graph.ModelRef{})))
	assert.Equal(t, []string{"a.glb", "b.glb"}, Referenced(g2))
}

func TestReloadKeepsOldAsset(t *testing.T) {
	l := newFakeLoader()
	r := New(l)
	r.Request("desk.glb")
	wait(t, r)
	old := r.Asset("desk.glb")

	l.mu.Lock()
	l.gate = make(chan struct{})
	l.mu.Unlock()
	require.True(t, r.Reload("desk.glb"))
	assert.False(t, r.Reload("desk.glb"), "reload is deduplicated while in flight")
	assert.Equal(t, Loaded, r.State("desk.glb"))
	assert.Same(t, old, r.Asset("desk.glb"))

	close(l.gate)
	wait(t, r)
	assert.NotSame(t, old, r.Asset("desk.glb"))
	assert.Equal(t, 2, l.count("desk.glb"))
}

func TestReloadAfterFailure(t *testing.T) {
	l := newFakeLoader("desk.glb")
	r := New(l)
	r.Request("desk.glb")
	wait(t, r)
	require.Equal(t, Failed, r.State("desk.glb"))

	l.mu.Lock()
	delete(l.fail, "desk.glb")
	l.mu.Unlock()
	require.True(t, r.Reload("desk.glb"))
	wait(t, r)
	assert.Equal(t, Loaded, r.State("desk.glb"))
}

func TestPumpAndOnApply(t *testing.T) {
	r := New(newFakeLoader())
	var applied []string
	r.OnApply(func(res Result) { applied = append(applied, res.Filename) })
	r.Request("a.glb")

	require.Eventually(t, func() bool {
		r.Pump()
		return r.State("a.glb") == Loaded
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a.glb"}, applied)
	assert.Equal(t, 0, r.Pump())
}

func TestNilAssetIsFailure(t *testing.T) {
	r := New(assets.LoaderFunc(func(context.Context, string) (*assets.Asset, error) { return nil, nil }))
	r.Request("a.glb")
	wait(t, r)
	assert.Equal(t, Failed, r.State("a.glb"))
}

func TestLoaderPanicIsFailure(t *testing.T) {
	r := New(assets.LoaderFunc(func(context.Context, string) (*assets.Asset, error) {
		var counts []int
		_ = counts[3]
		return nil, nil
	}))
	r.Request("crash.glb")
	wait(t, r)

	e, ok := r.Lookup("crash.glb")
	require.True(t, ok)
	assert.Equal(t, Failed, e.State)
	assert.ErrorContains(t, e.Err, "panicked")
}

func TestEntriesSorted(t *testing.T) {
	r := New(newFakeLoader())
	r.Request("b.glb")
	r.Request("a.glb")
	wait(t, r)
	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a.glb", entries[0].Filename)
	assert.Equal(t, 1, entries[0].Requests)
}

func TestWaitHonoursContext(t *testing.T) {
	l := newFakeLoader()
	l.gate = make(chan struct{})
	defer close(l.gate)
	r := New(l)
	r.Request("slow.glb")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestScannerCollapsesBurst(t *testing.T) {
	l := newFakeLoader()
	r := New(l)
	s := NewScanner(r, 20*time.Millisecond)

	g := scene("desk.glb")
	for i := 0; i < 10; i++ {
		g = g.Update(g.RootID(), func(n *graph.Node) { n.Name = "Root" })
		s.Notify(g)
	}
	require.Eventually(t, func() bool { return s.Scans() == 1 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, s.Scans())
	wait(t, r)
	assert.Equal(t, 1, l.count("desk.glb"))
}

func TestScannerScheduler(t *testing.T) {
	posted := make(chan func(), 1)
	r := New(newFakeLoader())
	s := NewScanner(r, time.Millisecond, WithScanScheduler(func(fn func()) { posted <- fn }))
	s.Notify(scene("a.glb"))

	select {
	case fn := <-posted:
		assert.Equal(t, 0, s.Scans())
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("scan was never posted")
	}
	assert.Equal(t, 1, s.Scans())
	assert.Equal(t, 0, s.Flush(), "nothing left to scan")
	wait(t, r)
}

func TestWatchReloadsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "desk.glb")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	r := New(newFakeLoader())
	r.Request("desk.glb")
	wait(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, dir) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("v2"), 0o644)
		r.Pump()
		return r.Loads() >= 2
	}, 5*time.Second, 20*time.Millisecond)

	// Files never requested are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.glb"), []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Unrequested, r.State("other.glb"))

	cancel()
	require.NoError(t, <-done)
	wait(t, r)
}
