package document

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/arbor/pkg/graph"
)

func everyComponent() *graph.Graph {
	return graph.Build(graph.Template{
		Name: graph.DefaultRootName,
		Children: []graph.Template{
			{
				Name:      "Pool",
				Transform: &graph.Transform{Position: graph.Vec3{X: 1.5, Y: -2, Z: 3}, Rotation: graph.Vec3{Y: 3.14159}, Scale: 2},
				Components: []graph.Component{
					graph.BoxGeometry{Width: 4, Height: 0.5, Depth: 4},
					graph.WaterMaterial{Color: "#1ABC9C", Distortion: 3.7, Size: 1},
					graph.Physics{Body: graph.BodyFixed},
				},
				Children: []graph.Template{
					graph.NewTemplate("Duck", graph.ModelRef{Filename: "duck.glb", Instanced: true}, graph.Physics{Body: graph.BodyDynamic}),
				},
			},
			graph.NewTemplate("Sign",
				graph.BoxGeometry{Width: 1, Height: 1, Depth: 0.1},
				graph.StandardMaterial{Color: "#fff", Roughness: 0.4, Metalness: 0.1, Opacity: 0.5, Transparent: true, Wireframe: true, Extra: map[string]float64{"emissive": 0.2}},
				graph.PointerEvent{Mode: graph.PointerLink, URL: "https://example.com"},
			),
			graph.NewTemplate("Bell", graph.PointerEvent{Mode: graph.PointerEmit, Event: "ring"}),
			graph.NewTemplate("Empty"),
		},
	})
}

func TestRoundTrip(t *testing.T) {
	g := everyComponent()
	for _, f := range []Format{JSON, YAML, Msgpack} {
		t.Run(f.String(), func(t *testing.T) {
			data, err := Encode(g, f)
			require.NoError(t, err)
			got, err := Decode(data, f)
			require.NoError(t, err)
			assert.True(t, graph.Equal(g, got), "decoded graph differs")
			assert.Empty(t, graph.Validate(got))

			// New ids never collide with loaded ones.
			next := got.IDs().Next()
			assert.False(t, got.Has(next))
		})
	}
}

func TestRoundTripAfterEdits(t *testing.T) {
	g := everyComponent()
	g, _ = g.RemoveByID(g.MustLookup("Bell").ID)
	g, ok := g.Insert(g.MustLookup("Pool").ID, 0, g.Instantiate(graph.NewTemplate("Float", graph.BoxGeometry{Width: 1, Height: 1, Depth: 1})))
	require.True(t, ok)

	data, err := Encode(g, JSON)
	require.NoError(t, err)
	got, err := Decode(data, JSON)
	require.NoError(t, err)
	assert.True(t, graph.Equal(g, got))
}

func TestDecodeDefaults(t *testing.T) {
	src := `
version: 1
root:
  id: 1
  name: Root
  children:
    - id: 2
      name: Box
      future_field: ignored
      transform:
        position: [1, 2, 3]
        shear: 4
      components:
        - type: box
          width: 1
          height: 2
          depth: 3
        - type: physics
        - type: pointer-event
          event: hit
`
	g, err := Decode([]byte(src), YAML)
	require.NoError(t, err)
	n := g.MustLookup("Box")
	require.NotNil(t, n.Transform)
	assert.Equal(t, graph.Transform{Position: graph.Vec3{X: 1, Y: 2, Z: 3}, Scale: 1}, *n.Transform)
	assert.Equal(t, []graph.Component{
		graph.BoxGeometry{Width: 1, Height: 2, Depth: 3},
		graph.Physics{Body: graph.BodyFixed},
		graph.PointerEvent{Mode: graph.PointerEmit, Event: "hit"},
	}, n.Components)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"syntax", `{"root": `},
		{"no root", `{"version": 1}`},
		{"null root", `{"version": 1, "root": null}`},
		{"unknown component", `{"root": {"id": 1, "components": [{"type": "laser"}]}}`},
		{"bad body", `{"root": {"id": 1, "components": [{"type": "physics", "body": "floaty"}]}}`},
		{"bad mode", `{"root": {"id": 1, "components": [{"type": "pointer-event", "mode": "hover"}]}}`},
		{"duplicate id", `{"root": {"id": 1, "children": [{"id": 2}, {"id": 2}]}}`},
		{"zero id", `{"root": {"id": 1, "children": [{"name": "x"}]}}`},
		{"null child", `{"root": {"id": 1, "children": [null]}}`},
		{"future version", `{"version": 99, "root": {"id": 1}}`},
		{"id overflow", `{"version": 1, "root": {"id": 18446744073709551615}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Decode([]byte(tt.src), JSON)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeMalformedMsgpack(t *testing.T) {
	_, err := Decode([]byte{0xc1}, Msgpack)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeNil(t *testing.T) {
	_, err := Encode(nil, JSON)
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"scene.json", JSON, true},
		{"scene.YAML", YAML, true},
		{"dir/scene.yml", YAML, true},
		{"scene.msgpack", Msgpack, true},
		{"scene.mpk", Msgpack, true},
		{"scene.txt", 0, false},
		{"scene", 0, false},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if !tt.ok {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestSaveLoad(t *testing.T) {
	g := everyComponent()
	dir := t.TempDir()
	for _, name := range []string{"a.json", "a.yaml", "a.msgpack"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, g))
		got, err := Load(path)
		require.NoError(t, err, name)
		assert.True(t, graph.Equal(g, got), name)
	}
	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadFS(t *testing.T) {
	data, err := Encode(everyComponent(), YAML)
	require.NoError(t, err)
	fsys := fstest.MapFS{
		"scenes/pool.yaml": {Data: data},
		"scenes/bad.json":  {Data: []byte(`{"root": {"id": 0}}`)},
	}
	g, err := LoadFS(fsys, "scenes/pool.yaml")
	require.NoError(t, err)
	assert.NotNil(t, g.Lookup("Duck"))

	_, err = LoadFS(fsys, "scenes/bad.json")
	assert.ErrorIs(t, err, ErrMalformed)
}
