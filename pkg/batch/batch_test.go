package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/arbor/pkg/assets"
	"github.com/chazu/arbor/pkg/graph"
	"github.com/chazu/arbor/pkg/kernel"
	"github.com/chazu/arbor/pkg/tessellate"
)

func triangle(dx float32, normals bool) *kernel.Mesh {
	m := &kernel.Mesh{
		Vertices: []float32{dx, 0, 0, dx + 1, 0, 0, dx, 1, 0},
		Indices:  []uint32{0, 1, 2},
	}
	if normals {
		m.Normals = []float32{0, 0, 1, 0, 0, 1, 0, 0, 1}
	}
	return m
}

// twoPart is an asset with two meshes and two materials.
func twoPart(name string) *assets.Asset {
	top, legs := triangle(0, true), triangle(5, true)
	legs.Material = 1
	return &assets.Asset{
		Filename:  name,
		Meshes:    []*kernel.Mesh{top, legs},
		Materials: []assets.Material{{Name: "top"}, {Name: "legs"}},
	}
}

func lookupOf(as ...*assets.Asset) AssetLookup {
	return func(name string) *assets.Asset {
		for _, a := range as {
			if a.Filename == name {
				return a
			}
		}
		return nil
	}
}

func at(node graph.NodeID, file string, phys PhysicsKind, x float64) Placement {
	return Placement{
		Node:     node,
		Filename: file,
		Physics:  phys,
		World:    tessellate.TRS(graph.Transform{Position: graph.Vec3{X: x}, Scale: 1}),
	}
}

func TestBuildGroupsByFileAndPhysics(t *testing.T) {
	r := NewRegistry()
	desk := twoPart("desk.glb")
	placements := []Placement{
		at(1, "desk.glb", PhysicsFixed, 0),
		at(2, "desk.glb", PhysicsFixed, 10),
		at(3, "desk.glb", PhysicsDynamic, 20),
		at(4, "desk.glb", PhysicsFixed, 30),
		at(5, "lamp.glb", PhysicsNone, 0),
	}
	res := r.Build(placements, lookupOf(desk))

	require.Len(t, res.Batches, 1)
	b := res.Batches[0]
	assert.Equal(t, Key{"desk.glb", PhysicsFixed}, b.Key)
	assert.Equal(t, []graph.NodeID{1, 2, 4}, []graph.NodeID{b.Instances[0].Node, b.Instances[1].Node, b.Instances[2].Node})
	assert.Len(t, b.Transforms(), 3)

	require.Len(t, res.Singles, 1)
	assert.Equal(t, graph.NodeID(3), res.Singles[0].Node)
	assert.Equal(t, "below threshold", res.Singles[0].Reason)

	require.Len(t, res.Missing, 1)
	assert.Equal(t, "lamp.glb", res.Missing[0].Filename)

	assert.Equal(t, 1+2, res.DrawCalls())
}

func TestMergedSubMeshes(t *testing.T) {
	r := NewRegistry()
	m, ok := r.Merge(twoPart("desk.glb"))
	require.True(t, ok)
	assert.Equal(t, 6, m.Mesh.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, m.Mesh.Indices)
	require.Len(t, m.SubMeshes, 2)
	assert.Equal(t, SubMesh{Start: 0, Count: 3, Material: assets.Material{Name: "top"}}, m.SubMeshes[0])
	assert.Equal(t, SubMesh{Start: 3, Count: 3, Material: assets.Material{Name: "legs"}}, m.SubMeshes[1])
	assert.Equal(t, kernel.AttrPosition|kernel.AttrNormal, m.Layout)
}

func TestMergeCachedPerAsset(t *testing.T) {
	r := NewRegistry()
	a := twoPart("desk.glb")
	m1, _ := r.Merge(a)
	m2, _ := r.Merge(a)
	assert.Same(t, m1, m2)

	reloaded := twoPart("desk.glb")
	m3, _ := r.Merge(reloaded)
	assert.NotSame(t, m1, m3, "a reloaded asset is merged again")
	assert.Equal(t, 1, r.Cached())
}

func TestIncompatibleLayoutFallsBack(t *testing.T) {
	r := NewRegistry()
	mixed := &assets.Asset{Filename: "mixed.glb", Meshes: []*kernel.Mesh{triangle(0, true), triangle(1, false)}}
	res := r.Build([]Placement{at(1, "mixed.glb", PhysicsNone, 0), at(2, "mixed.glb", PhysicsNone, 5)}, lookupOf(mixed))
	assert.Empty(t, res.Batches)
	require.Len(t, res.Singles, 2)
	assert.Equal(t, "incompatible layout", res.Singles[0].Reason)
}

func TestMinInstances(t *testing.T) {
	r := NewRegistry(WithMinInstances(3))
	a := twoPart("desk.glb")
	res := r.Build([]Placement{at(1, "desk.glb", PhysicsNone, 0), at(2, "desk.glb", PhysicsNone, 1)}, lookupOf(a))
	assert.Empty(t, res.Batches)
	assert.Len(t, res.Singles, 2)

	assert.Equal(t, 1, NewRegistry(WithMinInstances(-4)).MinInstances())
}

// TestBatchingIsTransparent checks that batched instances produce exactly
// the world-space geometry the same placements produce unbatched.
func TestBatchingIsTransparent(t *testing.T) {
	a := twoPart("desk.glb")
	var placements []Placement
	for i := 0; i < 5; i++ {
		p := at(graph.NodeID(i+1), "desk.glb", PhysicsFixed, float64(i)*3)
		p.World = p.World.Mul(tessellate.TRS(graph.Transform{Rotation: graph.Vec3{Y: float64(i)}, Scale: 1 + float64(i)/2}))
		placements = append(placements, p)
	}
	batched := NewRegistry().Build(placements, lookupOf(a))
	unbatched := NewRegistry(WithMinInstances(len(placements)+1)).Build(placements, lookupOf(a))
	require.Len(t, batched.Batches, 1)
	require.Len(t, unbatched.Singles, len(placements))

	b := batched.Batches[0]
	for i, s := range unbatched.Singles {
		inst := b.InstanceMesh(i)
		var verts, norms []float32
		for _, m := range s.WorldMeshes() {
			verts = append(verts, m.Vertices...)
			norms = append(norms, m.Normals...)
		}
		require.Len(t, inst.Vertices, len(verts))
		for j := range verts {
			assert.InDelta(t, verts[j], inst.Vertices[j], 1e-5)
			assert.InDelta(t, norms[j], inst.Normals[j], 1e-5)
		}
		// Per-submesh materials match per-mesh materials.
		for k, sm := range b.Merged.SubMeshes {
			assert.Equal(t, a.MaterialFor(k), sm.Material)
		}
	}
	assert.Less(t, batched.DrawCalls(), unbatched.DrawCalls())
}

func TestPhysicsOf(t *testing.T) {
	assert.Equal(t, PhysicsNone, PhysicsOf(&graph.Node{}))
	assert.Equal(t, PhysicsFixed, PhysicsOf(&graph.Node{Components: []graph.Component{graph.Physics{}}}))
	assert.Equal(t, PhysicsDynamic, PhysicsOf(&graph.Node{Components: []graph.Component{graph.Physics{Body: graph.BodyDynamic}}}))
	assert.Equal(t, "dynamic", PhysicsDynamic.String())
}

func TestEmptyBuild(t *testing.T) {
	res := NewRegistry().Build(nil, lookupOf())
	assert.Empty(t, res.Batches)
	assert.Equal(t, 0, res.DrawCalls())
}
