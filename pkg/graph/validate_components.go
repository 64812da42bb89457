package graph

import (
	"fmt"
	"path"
	"strings"
)

// ---------------------------------------------------------------------------
// Component tier (errors + warnings)
// ---------------------------------------------------------------------------

// componentValidator visits each component of one node and records
// findings against it.
type componentValidator struct {
	node     *Node
	errs     []ValidationError
	warnings []ValidationWarning
	physics  int
}

func (v *componentValidator) errorf(format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		NodeID:   v.node.ID,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	})
}

func (v *componentValidator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, ValidationWarning{
		NodeID:  v.node.ID,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *componentValidator) VisitBox(b BoxGeometry) {
	if b.Width <= 0 || b.Height <= 0 || b.Depth <= 0 {
		v.errorf("box dimensions %gx%gx%g must be positive", b.Width, b.Height, b.Depth)
	}
}

func (v *componentValidator) VisitStandardMaterial(m StandardMaterial) {
	if m.Opacity < 0 || m.Opacity > 1 {
		v.errorf("material opacity %g outside [0, 1]", m.Opacity)
	}
	if m.Opacity < 1 && m.Opacity > 0 && !m.Transparent {
		v.warnf("material opacity %g has no effect unless transparent", m.Opacity)
	}
}

func (v *componentValidator) VisitWaterMaterial(m WaterMaterial) {
	if m.Size <= 0 {
		v.warnf("water size %g is not positive", m.Size)
	}
}

func (v *componentValidator) VisitModelRef(m ModelRef) {
	if strings.TrimSpace(m.Filename) == "" {
		v.errorf("model reference has an empty filename")
		return
	}
	if path.Ext(m.Filename) == "" {
		v.warnf("model %q has no extension; the loader will sniff its format", m.Filename)
	}
}

func (v *componentValidator) VisitPhysics(Physics) {
	v.physics++
	if v.physics == 2 {
		v.warnf("node has more than one physics component; only the first is used")
	}
	if v.node.IsRoot() {
		v.warnf("physics on the root node is ignored")
	}
}

func (v *componentValidator) VisitPointerEvent(p PointerEvent) {
	if p.Mode == PointerLink && p.URL == "" {
		v.errorf("link pointer event has no URL")
	}
}

// validateComponents runs the component checks over every node.
func validateComponents(g *Graph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning
	g.Walk(func(n *Node, _ int) bool {
		v := &componentValidator{node: n}
		for _, c := range n.Components {
			c.Accept(v)
		}
		errs = append(errs, v.errs...)
		warnings = append(warnings, v.warnings...)
		return true
	})
	return errs, warnings
}
