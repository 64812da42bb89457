package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/arbor/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites scene source before it reaches zygomys. It
// performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: standard-material -> standard_material
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpComponent wraps a graph.Component built by a component builtin.
type sexpComponent struct {
	c graph.Component
}

func (c *sexpComponent) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %+v)", c.c.Kind(), c.c)
}
func (c *sexpComponent) Type() *zygo.RegisteredType { return nil }

// sexpNode wraps a graph.Template so nodes can be nested, bound to
// variables and reused. Reusing a node instantiates it again.
type sexpNode struct {
	tmpl graph.Template
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %q :children %d)", n.tmpl.Name, len(n.tmpl.Children))
}
func (n *sexpNode) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
// A keyword followed by another keyword, or by nothing, is a flag.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		result.order = append(result.order, name)
		if i+1 < len(args) {
			if _, next := isKW(args[i+1]); !next {
				result.kw[name] = args[i+1]
				i += 2
				continue
			}
		}
		result.kw[name] = zygo.SexpNull
		i++
	}
	return result
}

// flag reports whether name was given as a bare keyword.
func (a kwArgs) flag(name string) bool {
	v, ok := a.kw[name]
	return ok && v == zygo.SexpNull
}

// number assigns the keyword's numeric value to dst when present.
func (a kwArgs) number(fn, name string, dst *float64) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, name, err)
	}
	*dst = f
	return nil
}

// text assigns the keyword's string value to dst when present.
func (a kwArgs) text(fn, name string, dst *string) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	s, err := toString(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, name, err)
	}
	*dst = s
	return nil
}

// boolean assigns the keyword's boolean value to dst when present. A bare
// keyword means true.
func (a kwArgs) boolean(fn, name string, dst *bool) error {
	v, ok := a.kw[name]
	if !ok {
		return nil
	}
	if v == zygo.SexpNull {
		*dst = true
		return nil
	}
	b, err := toBool(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", fn, name, err)
	}
	*dst = b
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toBool extracts a boolean from a Sexp.
func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_dynamic) and plain strings.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// nodeBody sorts the positional arguments of node and scene into
// components and children. Lists and arrays are flattened so generated
// children can be passed directly.
func nodeBody(fn string, args []zygo.Sexp, t *graph.Template) error {
	for i, a := range args {
		switch v := a.(type) {
		case *sexpComponent:
			t.Components = append(t.Components, graph.CloneComponent(v.c))
		case *sexpNode:
			t.Children = append(t.Children, v.tmpl)
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(v)
			if err != nil {
				return fmt.Errorf("%s: argument %d: %w", fn, i+1, err)
			}
			if err := nodeBody(fn, items, t); err != nil {
				return err
			}
		default:
			if a == zygo.SexpNull {
				continue
			}
			return fmt.Errorf("%s: argument %d: expected component or node, got %T (%s)", fn, i+1, a, a.SexpString(nil))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// standardMaterialKeys are the StandardMaterial fields; any other numeric
// keyword lands in Extra.
var standardMaterialKeys = map[string]bool{
	"color": true, "roughness": true, "metalness": true,
	"opacity": true, "transparent": true, "wireframe": true,
}

// sceneBuilder collects the result of one evaluation.
type sceneBuilder struct {
	root *graph.Template
}

// registerBuiltins installs the scene builtins into a zygomys environment.
// The scene builtin records the root template on sb.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, sb *sceneBuilder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: graph.Vec3{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (box 1 2 3) or (box :width 1 :height 2 :depth 3)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		b := graph.BoxGeometry{Width: 1, Height: 1, Depth: 1}
		dims := []*float64{&b.Width, &b.Height, &b.Depth}
		if len(pa.positional) > len(dims) {
			return zygo.SexpNull, fmt.Errorf("box takes at most 3 dimensions, got %d", len(pa.positional))
		}
		for i, v := range pa.positional {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i+1, err)
			}
			*dims[i] = f
		}
		for _, err := range []error{
			pa.number("box", "width", &b.Width),
			pa.number("box", "height", &b.Height),
			pa.number("box", "depth", &b.Depth),
		} {
			if err != nil {
				return zygo.SexpNull, err
			}
		}
		if b.Width <= 0 || b.Height <= 0 || b.Depth <= 0 {
			return zygo.SexpNull, fmt.Errorf("box: dimensions %gx%gx%g must be positive", b.Width, b.Height, b.Depth)
		}
		return &sexpComponent{c: b}, nil
	})

	// -----------------------------------------------------------------------
	// (standard-material :color "#8B5A2B" :roughness 0.8 :emissive 0.2)
	// -----------------------------------------------------------------------
	env.AddFunction("standard_material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		m := graph.StandardMaterial{Roughness: 1, Opacity: 1}
		for _, err := range []error{
			pa.text("standard-material", "color", &m.Color),
			pa.number("standard-material", "roughness", &m.Roughness),
			pa.number("standard-material", "metalness", &m.Metalness),
			pa.number("standard-material", "opacity", &m.Opacity),
			pa.boolean("standard-material", "transparent", &m.Transparent),
			pa.boolean("standard-material", "wireframe", &m.Wireframe),
		} {
			if err != nil {
				return zygo.SexpNull, err
			}
		}
		for _, k := range pa.order {
			if standardMaterialKeys[k] {
				continue
			}
			f, err := toFloat64(pa.kw[k])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("standard-material: %s: %w", k, err)
			}
			if m.Extra == nil {
				m.Extra = make(map[string]float64)
			}
			m.Extra[k] = f
		}
		if m.Opacity < 0 || m.Opacity > 1 {
			return zygo.SexpNull, fmt.Errorf("standard-material: opacity %g outside [0, 1]", m.Opacity)
		}
		return &sexpComponent{c: m}, nil
	})

	// -----------------------------------------------------------------------
	// (water-material :color "#1ABC9C" :distortion 3.7 :size 1)
	// -----------------------------------------------------------------------
	env.AddFunction("water_material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		m := graph.WaterMaterial{Size: 1}
		for _, err := range []error{
			pa.text("water-material", "color", &m.Color),
			pa.number("water-material", "distortion", &m.Distortion),
			pa.number("water-material", "size", &m.Size),
		} {
			if err != nil {
				return zygo.SexpNull, err
			}
		}
		return &sexpComponent{c: m}, nil
	})

	// -----------------------------------------------------------------------
	// (model "chair.glb" :instanced true)
	// -----------------------------------------------------------------------
	env.AddFunction("model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("model requires a filename")
		}
		file, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("model: filename: %w", err)
		}
		if strings.TrimSpace(file) == "" {
			return zygo.SexpNull, fmt.Errorf("model: empty filename")
		}
		ref := graph.ModelRef{Filename: file}
		if err := pa.boolean("model", "instanced", &ref.Instanced); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpComponent{c: ref}, nil
	})

	// -----------------------------------------------------------------------
	// (physics), (physics :dynamic) or (physics :body :dynamic)
	// -----------------------------------------------------------------------
	env.AddFunction("physics", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		for _, k := range pa.order {
			if k != "body" && k != "fixed" && k != "dynamic" {
				return zygo.SexpNull, fmt.Errorf("physics: unknown option :%s", k)
			}
		}
		p := graph.Physics{}
		kind := ""
		switch {
		case pa.flag("dynamic"):
			kind = "dynamic"
		case pa.flag("fixed"):
			kind = "fixed"
		}
		if v, ok := pa.kw["body"]; ok && v != zygo.SexpNull {
			s, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("physics: body: %w", err)
			}
			kind = s
		}
		if kind != "" {
			k, err := graph.ParseBodyKind(kind)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("physics: %w", err)
			}
			p.Body = k
		}
		return &sexpComponent{c: p}, nil
	})

	// -----------------------------------------------------------------------
	// (pointer-event :emit "door-open") or (pointer-event :link "https://...")
	// -----------------------------------------------------------------------
	env.AddFunction("pointer_event", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		p := graph.PointerEvent{}
		_, emit := pa.kw["emit"]
		_, link := pa.kw["link"]
		switch {
		case emit && link:
			return zygo.SexpNull, fmt.Errorf("pointer-event: :emit and :link are exclusive")
		case link:
			p.Mode = graph.PointerLink
			if err := pa.text("pointer-event", "link", &p.URL); err != nil {
				return zygo.SexpNull, err
			}
			if p.URL == "" {
				return zygo.SexpNull, fmt.Errorf("pointer-event: link requires a URL")
			}
		case emit && !pa.flag("emit"):
			if err := pa.text("pointer-event", "emit", &p.Event); err != nil {
				return zygo.SexpNull, err
			}
		}
		return &sexpComponent{c: p}, nil
	})

	// -----------------------------------------------------------------------
	// (node "Desk" :position (vec3 1 0 2) :rotation (vec3 0 1.57 0) :scale 1
	//       (model "desk.glb") (physics) (node "Lamp" ...))
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		t := graph.Template{}
		body := pa.positional
		if len(body) > 0 {
			if s, ok := body[0].(*zygo.SexpStr); ok {
				t.Name = s.S
				body = body[1:]
			}
		}
		tr, err := transformArgs(pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		t.Transform = tr
		if err := nodeBody("node", body, &t); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNode{tmpl: t}, nil
	})

	// -----------------------------------------------------------------------
	// (scene "Office" (node ...) (node ...))
	// -----------------------------------------------------------------------
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if sb.root != nil {
			return zygo.SexpNull, fmt.Errorf("scene: only one scene per source")
		}
		t := graph.Template{Name: graph.DefaultRootName}
		body := args
		if len(body) > 0 {
			if s, ok := body[0].(*zygo.SexpStr); ok {
				if _, kw := isKW(s); !kw {
					t.Name = s.S
					body = body[1:]
				}
			}
		}
		if err := nodeBody("scene", body, &t); err != nil {
			return zygo.SexpNull, err
		}
		sb.root = &t
		return &sexpNode{tmpl: t}, nil
	})
}

// transformArgs reads :position, :rotation and :scale. It returns nil when
// none is given so the node keeps the identity.
func transformArgs(pa kwArgs) (*graph.Transform, error) {
	t := graph.Identity()
	set := false
	if v, ok := pa.kw["position"]; ok {
		vec, err := toVec3(v)
		if err != nil {
			return nil, fmt.Errorf("node: position: %w", err)
		}
		t.Position, set = vec, true
	}
	if v, ok := pa.kw["rotation"]; ok {
		vec, err := toVec3(v)
		if err != nil {
			return nil, fmt.Errorf("node: rotation: %w", err)
		}
		t.Rotation, set = vec, true
	}
	if _, ok := pa.kw["scale"]; ok {
		if err := pa.number("node", "scale", &t.Scale); err != nil {
			return nil, err
		}
		if t.Scale <= 0 {
			return nil, fmt.Errorf("node: scale %g must be positive", t.Scale)
		}
		set = true
	}
	if !set {
		return nil, nil
	}
	return &t, nil
}
