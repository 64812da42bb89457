// Package batch groups model placements that share an asset and a physics
// kind, merges the asset's meshes once, and draws each group as one
// instanced draw with a transform per instance. Groups that are too small
// or whose meshes disagree on vertex layout are drawn one by one.
package batch

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/chazu/arbor/pkg/assets"
	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/kernel"
	"github.com/chazu/arbor/pkg/tessellate"
)

// DefaultMinInstances is the smallest group drawn as a batch.
const DefaultMinInstances = 2

// PhysicsKind is the rigid-body participation of a placement.
type PhysicsKind int

const (
	PhysicsNone PhysicsKind = iota
	PhysicsFixed
	PhysicsDynamic
)

func (k PhysicsKind) String() string {
	switch k {
	case PhysicsNone:
		return "none"
	case PhysicsFixed:
		return "fixed"
	case PhysicsDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("PhysicsKind(%d)", int(k))
	}
}

// PhysicsOf returns the physics kind of the node's first Physics component.
func PhysicsOf(n *graph.Node) PhysicsKind {
	p, ok := graph.Find[graph.Physics](n)
	if !ok {
		return PhysicsNone
	}
	if p.Body == graph.BodyDynamic {
		return PhysicsDynamic
	}
	return PhysicsFixed
}

// Placement is one live instance of a model in world space.
type Placement struct {
	Node     graph.NodeID
	Filename string
	Physics  PhysicsKind
	World    tessellate.Mat4
}

// Key identifies a batch group.
type Key struct {
	Filename string
	Physics  PhysicsKind
}

// KeyOf returns the group key of p.
func KeyOf(p Placement) Key { return Key{Filename: p.Filename, Physics: p.Physics} }

// AssetLookup returns the loaded asset for a filename, or nil.
type AssetLookup func(filename string) *assets.Asset

// SubMesh is an index range of a merged mesh drawn with one material.
type SubMesh struct {
	Start    int
	Count    int
	Material assets.Material
}

// Merged is an asset's meshes concatenated into one.
type Merged struct {
	Mesh      *kernel.Mesh
	SubMeshes []SubMesh
	Layout    kernel.Attribute
}

// Batch is a group of placements drawn as one instanced draw.
type Batch struct {
	Key       Key
	Merged    *Merged
	Instances []Placement
}

// Transforms returns one world matrix per instance.
func (b *Batch) Transforms() []tessellate.Mat4 {
	return lo.Map(b.Instances, func(p Placement, _ int) tessellate.Mat4 { return p.World })
}

// InstanceMesh returns the world-space geometry of instance i.
func (b *Batch) InstanceMesh(i int) *kernel.Mesh {
	return b.Instances[i].World.ApplyMesh(b.Merged.Mesh)
}

// Single is a placement drawn on its own.
type Single struct {
	Placement
	Asset  *assets.Asset
	Reason string
}

// WorldMeshes returns the world-space geometry of every asset mesh.
func (s *Single) WorldMeshes() []*kernel.Mesh {
	return lo.Map(s.Asset.Meshes, func(m *kernel.Mesh, _ int) *kernel.Mesh { return s.World.ApplyMesh(m) })
}

// Result is the outcome of one Build.
type Result struct {
	Batches []*Batch
	Singles []*Single
	Missing []Placement // asset not loaded
}

// DrawCalls counts the draws the result needs: one per batch and one per
// mesh of each single.
func (r Result) DrawCalls() int {
	n := len(r.Batches)
	for _, s := range r.Singles {
		n += len(s.Asset.Meshes)
	}
	return n
}

// Option configures a Registry.
type Option func(*Registry)

// WithMinInstances sets the smallest group drawn as a batch.
func WithMinInstances(n int) Option {
	return func(r *Registry) { r.min = max(n, 1) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

type cached struct {
	asset  *assets.Asset
	merged *Merged
	ok     bool
}

// Registry builds batches and caches merged meshes per asset.
type Registry struct {
	min int
	log *slog.Logger

	mu     sync.Mutex
	merged map[string]cached
}

// NewRegistry returns a batcher.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{min: DefaultMinInstances, log: slog.Default(), merged: make(map[string]cached)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// MinInstances returns the batching threshold.
func (r *Registry) MinInstances() int { return r.min }

// Build groups placements by (filename, physics kind) in order of first
// appearance and decides, per group, between a batch and single draws.
func (r *Registry) Build(placements []Placement, lookup AssetLookup) Result {
	var res Result
	groups := lo.GroupBy(placements, KeyOf)
	keys := lo.Uniq(lo.Map(placements, func(p Placement, _ int) Key { return KeyOf(p) }))
	for _, key := range keys {
		group := groups[key]
		asset := lookup(key.Filename)
		if asset == nil {
			res.Missing = append(res.Missing, group...)
			continue
		}
		reason := ""
		var merged *Merged
		if len(group) < r.min {
			reason = "below threshold"
		} else if m, ok := r.Merge(asset); ok {
			merged = m
		} else {
			reason = "incompatible layout"
		}
		if merged == nil {
			for _, p := range group {
				res.Singles = append(res.Singles, &Single{Placement: p, Asset: asset, Reason: reason})
			}
			continue
		}
		res.Batches = append(res.Batches, &Batch{Key: key, Merged: merged, Instances: group})
	}
	r.log.Debug("batched", "count", len(res.Batches), "singles", len(res.Singles), "missing", len(res.Missing))
	return res
}

// Merge returns the merged mesh of a, building it on first use. It reports
// false when the asset's meshes do not share a vertex layout.
func (r *Registry) Merge(a *assets.Asset) (*Merged, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.merged[a.Filename]; ok && c.asset == a {
		return c.merged, c.ok
	}
	m, ok := merge(a)
	r.merged[a.Filename] = cached{asset: a, merged: m, ok: ok}
	if !ok {
		r.log.Info("asset not batchable", "file", a.Filename)
	}
	return m, ok
}

// Cached returns the number of assets with a cached merge.
func (r *Registry) Cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.merged)
}

func merge(a *assets.Asset) (*Merged, bool) {
	layout, ok := a.Layout()
	if !ok {
		return nil, false
	}
	out := &kernel.Mesh{PartName: a.Filename, Material: -1}
	m := &Merged{Mesh: out, Layout: layout}
	for i, src := range a.Meshes {
		base := uint32(out.VertexCount())
		start := len(out.Indices)
		out.Vertices = append(out.Vertices, src.Vertices...)
		if layout.Has(kernel.AttrNormal) {
			out.Normals = append(out.Normals, src.Normals...)
		}
		if layout.Has(kernel.AttrTexcoord) {
			out.Texcoords = append(out.Texcoords, src.Texcoords...)
		}
		for _, idx := range src.Indices {
			out.Indices = append(out.Indices, base+idx)
		}
		m.SubMeshes = append(m.SubMeshes, SubMesh{Start: start, Count: len(src.Indices), Material: a.MaterialFor(i)})
	}
	return m, true
}
