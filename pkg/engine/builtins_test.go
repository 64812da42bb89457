package engine

import (
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/arbor/pkg/graph"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(model "desk.glb" :instanced true)`,
			expect: `(model "desk.glb" "__kw_instanced" true)`,
		},
		{
			name:   "multiple keywords",
			input:  `(box :width 4 :depth 2)`,
			expect: `(box "__kw_width" 4 "__kw_depth" 2)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(standard-material :color "#fff")`,
			expect: `(standard_material "__kw_color" "#fff")`,
		},
		{
			name:   "kebab-case in string preserved",
			input:  `(pointer-event :emit "door-open")`,
			expect: `(pointer_event "__kw_emit" "door-open")`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:head-dia`,
			expect: `"__kw_head-dia"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// mustEvaluate evaluates source and fails the test on any error.
func mustEvaluate(t *testing.T, source string) *graph.Graph {
	t.Helper()
	g, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	return g
}

// evalErrors evaluates source that must fail with eval errors.
func evalErrors(t *testing.T, source string) []EvalError {
	t.Helper()
	g, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if g != nil {
		t.Fatal("expected nil graph")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected eval errors")
	}
	return evalErrs
}

// ---------------------------------------------------------------------------
// Scene tests
// ---------------------------------------------------------------------------

func TestSimpleScene(t *testing.T) {
	g := mustEvaluate(t, `
(scene "Office"
  (node "Floor" (box 20 1 20) (physics)))
`)
	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
	if g.Root().Name != "Office" {
		t.Errorf("root name = %q, want Office", g.Root().Name)
	}
	floor := g.Lookup("Floor")
	if floor == nil {
		t.Fatal("expected node named 'Floor'")
	}
	want := []graph.Component{
		graph.BoxGeometry{Width: 20, Height: 1, Depth: 20},
		graph.Physics{Body: graph.BodyFixed},
	}
	if !reflect.DeepEqual(floor.Components, want) {
		t.Errorf("components = %+v, want %+v", floor.Components, want)
	}
	if floor.Transform != nil {
		t.Errorf("transform = %+v, want nil", floor.Transform)
	}
}

func TestSceneDefaultRootName(t *testing.T) {
	g := mustEvaluate(t, `(scene (node "A"))`)
	if g.Root().Name != graph.DefaultRootName {
		t.Errorf("root name = %q, want %q", g.Root().Name, graph.DefaultRootName)
	}
}

func TestNestedNodesAndTransform(t *testing.T) {
	g := mustEvaluate(t, `
(scene
  (node "Desk" :position (vec3 1 0 2) :rotation (vec3 0 1.5 0) :scale 2
    (model "desk.glb")
    (node "Lamp" :position (vec3 0 1 0)
      (model "lamp.glb" :instanced true))))
`)
	desk := g.Lookup("Desk")
	lamp := g.Lookup("Lamp")
	if desk == nil || lamp == nil {
		t.Fatal("expected Desk and Lamp")
	}
	if lamp.Parent != desk.ID {
		t.Errorf("Lamp parent = %v, want %v", lamp.Parent, desk.ID)
	}
	wantT := graph.Transform{Position: graph.Vec3{X: 1, Z: 2}, Rotation: graph.Vec3{Y: 1.5}, Scale: 2}
	if desk.Transform == nil || *desk.Transform != wantT {
		t.Errorf("Desk transform = %+v, want %+v", desk.Transform, wantT)
	}
	if lamp.Transform == nil || lamp.Transform.Scale != 1 {
		t.Errorf("Lamp transform = %+v, want unit scale", lamp.Transform)
	}
	ref, ok := graph.Find[graph.ModelRef](lamp)
	if !ok || ref.Filename != "lamp.glb" || !ref.Instanced {
		t.Errorf("Lamp model = %+v, want instanced lamp.glb", ref)
	}
}

func TestVariableReuse(t *testing.T) {
	g := mustEvaluate(t, `
(def wood (standard-material :color "#8B5A2B" :roughness 0.8))
(def chair (node "Chair" (model "chair.glb" :instanced true) (physics :dynamic) wood))
(scene chair chair chair)
`)
	if g.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", g.Len())
	}
	seen := map[graph.NodeID]bool{}
	for _, c := range g.Children(g.Root()) {
		if seen[c.ID] {
			t.Errorf("duplicate id %v", c.ID)
		}
		seen[c.ID] = true
		p, _ := graph.Find[graph.Physics](c)
		if p.Body != graph.BodyDynamic {
			t.Errorf("%s body = %v, want dynamic", c.ID.Short(), p.Body)
		}
		m, ok := graph.Find[graph.StandardMaterial](c)
		if !ok || m.Color != "#8B5A2B" || m.Roughness != 0.8 {
			t.Errorf("%s material = %+v", c.ID.Short(), m)
		}
	}
}

func TestGeneratedChildren(t *testing.T) {
	g := mustEvaluate(t, `
(scene
  (node "Row" (list (node "A") (node "B")) [(node "C")]))
`)
	row := g.Lookup("Row")
	if row == nil {
		t.Fatal("expected Row")
	}
	var names []string
	for _, c := range g.Children(row) {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "A,B,C" {
		t.Errorf("children = %v, want A,B,C", names)
	}
}

func TestComponentBuiltins(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   graph.Component
	}{
		{"box positional", `(box 1 2 3)`, graph.BoxGeometry{Width: 1, Height: 2, Depth: 3}},
		{"box keywords", `(box :width 4 :depth 2)`, graph.BoxGeometry{Width: 4, Height: 1, Depth: 2}},
		{"standard defaults", `(standard-material)`, graph.StandardMaterial{Roughness: 1, Opacity: 1}},
		{
			"standard full",
			`(standard-material :color "#fff" :roughness 0.2 :metalness 0.9 :opacity 0.5 :transparent true :wireframe :emissive 0.3)`,
			graph.StandardMaterial{Color: "#fff", Roughness: 0.2, Metalness: 0.9, Opacity: 0.5, Transparent: true, Wireframe: true, Extra: map[string]float64{"emissive": 0.3}},
		},
		{"water", `(water-material :color "#1ABC9C" :distortion 3.7)`, graph.WaterMaterial{Color: "#1ABC9C", Distortion: 3.7, Size: 1}},
		{"model", `(model "desk.glb")`, graph.ModelRef{Filename: "desk.glb"}},
		{"physics fixed", `(physics :fixed)`, graph.Physics{Body: graph.BodyFixed}},
		{"physics body keyword", `(physics :body :dynamic)`, graph.Physics{Body: graph.BodyDynamic}},
		{"physics body string", `(physics :body "dynamic")`, graph.Physics{Body: graph.BodyDynamic}},
		{"pointer emit", `(pointer-event :emit "door-open")`, graph.PointerEvent{Mode: graph.PointerEmit, Event: "door-open"}},
		{"pointer emit bare", `(pointer-event :emit)`, graph.PointerEvent{Mode: graph.PointerEmit}},
		{"pointer link", `(pointer-event :link "https://example.com")`, graph.PointerEvent{Mode: graph.PointerLink, URL: "https://example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustEvaluate(t, `(scene (node "N" `+tt.source+`))`)
			n := g.Lookup("N")
			if n == nil || len(n.Components) != 1 {
				t.Fatalf("node N = %+v, want one component", n)
			}
			if !graph.ComponentEqual(n.Components[0], tt.want) {
				t.Errorf("component = %+v, want %+v", n.Components[0], tt.want)
			}
		})
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"vec3 arity", `(vec3 1 2)`},
		{"vec3 type", `(vec3 1 "a" 3)`},
		{"box non-positive", `(box 0 1 1)`},
		{"box too many", `(box 1 2 3 4)`},
		{"opacity range", `(standard-material :opacity 2)`},
		{"extra not numeric", `(standard-material :glow "lots")`},
		{"model without file", `(model)`},
		{"model empty file", `(model "  ")`},
		{"physics bad body", `(physics :body :floaty)`},
		{"pointer both", `(pointer-event :emit "a" :link "b")`},
		{"pointer link no url", `(pointer-event :link)`},
		{"node bad child", `(node "A" 42)`},
		{"node bad position", `(node "A" :position 3)`},
		{"node bad scale", `(node "A" :scale 0)`},
		{"two scenes", `(scene) (scene)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := evalErrors(t, tt.source)
			if errs[0].Message == "" {
				t.Error("eval error message should not be empty")
			}
		})
	}
}

func TestSceneWithoutCall(t *testing.T) {
	g := mustEvaluate(t, `(def chair (node "Chair"))`)
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestEvaluateResultWarnings(t *testing.T) {
	res, err := NewEngine().EvaluateResult(`
(scene
  (node "Duck" (model "duck") (physics) (physics)))
`)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if !res.OK() {
		t.Fatalf("errors: %v", res.Errors)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2 (no extension, two physics)", res.Warnings)
	}
	duck := res.Graph.Lookup("Duck")
	for _, w := range res.Warnings {
		if w.NodeID != duck.ID {
			t.Errorf("warning %q on %v, want %v", w.Message, w.NodeID, duck.ID)
		}
	}
}

func TestEvaluateResultErrors(t *testing.T) {
	res, err := NewEngine().EvaluateResult(`(+ 1`)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if res.OK() || len(res.Errors) == 0 {
		t.Errorf("result = %+v, want errors", res)
	}
}

func TestOfficeExample(t *testing.T) {
	g := mustEvaluate(t, `
;; A small office.
(def wood (standard-material :color "#8B5A2B" :roughness 0.8))
(def chair (node "Chair" (model "chair.glb" :instanced true) (physics :dynamic)))

(scene "Office"
  (node "Floor" (box 20 0.2 20) (standard-material :color "#808080") (physics))
  (node "Desk" :position (vec3 0 0 -2)
    (model "desk.glb") (physics)
    (node "Lamp" :position (vec3 0.5 0.8 0) (model "lamp.glb")))
  (node "Chairs"
    (node "Chair" :position (vec3 -1 0 0) (model "chair.glb" :instanced true) (physics :dynamic))
    (node "Chair" :position (vec3 1 0 0) (model "chair.glb" :instanced true) (physics :dynamic)))
  (node "Pool" :position (vec3 5 0 5) (box 4 0.5 4) (water-material :color "#1ABC9C"))
  (node "Door" (box 1 2 0.1) wood (pointer-event :emit "door-open"))
  (node "Poster" (box 1 1 0.05) (pointer-event :link "https://example.com")))
`)
	if g.Len() != 10 {
		t.Errorf("Len() = %d, want 10", g.Len())
	}
	if errs := graph.Validate(g); len(errs) != 0 {
		t.Errorf("Validate() = %v", errs)
	}
	refs := map[string]int{}
	for _, r := range g.ModelRefs() {
		refs[r.Filename]++
	}
	if refs["chair.glb"] != 2 || refs["desk.glb"] != 1 || refs["lamp.glb"] != 1 {
		t.Errorf("model refs = %v", refs)
	}
}
