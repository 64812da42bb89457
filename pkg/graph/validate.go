package graph

import "fmt"

// ValidationSeverity indicates whether a validation finding marks the graph
// unusable or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // graph violates an invariant
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	NodeID  NodeID
	Message string
}

// ValidationResult bundles errors and warnings from all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether the result carries no errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate runs the structural checks on the graph and returns the
// findings. An empty slice means every tree invariant holds. Validate is
// read-only.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRoot(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateAcyclic(g)...)
	errs = append(errs, validateReachable(g)...)
	return errs
}

// ValidateAll runs the structural tier and the component tier and returns
// errors and warnings separately.
func ValidateAll(g *Graph) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{NodeID: e.NodeID, Message: e.Message})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	compErrs, compWarnings := validateComponents(g)
	result.Errors = append(result.Errors, compErrs...)
	result.Warnings = append(result.Warnings, compWarnings...)
	return result
}

// validateRoot checks that there is exactly one root and that it is the
// graph's designated root.
func validateRoot(g *Graph) []ValidationError {
	var errs []ValidationError
	root := g.Root()
	if root == nil {
		return []ValidationError{{Message: "graph has no root node", Severity: SeverityError}}
	}
	if !root.Parent.IsZero() {
		errs = append(errs, ValidationError{
			NodeID:   root.ID,
			Message:  fmt.Sprintf("root has parent %s", root.Parent.Short()),
			Severity: SeverityError,
		})
	}
	g.nodes.each(func(n *Node) {
		if n.Parent.IsZero() && n.ID != g.root {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("node %q is a second root", n.label()),
				Severity: SeverityError,
			})
		}
	})
	return errs
}

// validateReferences checks that every child id exists and points back at
// its parent, and that no node is listed twice.
func validateReferences(g *Graph) []ValidationError {
	var errs []ValidationError
	seen := make(map[NodeID]NodeID)
	g.nodes.each(func(n *Node) {
		for _, cid := range n.Children {
			child := g.nodes.get(cid)
			if child == nil {
				errs = append(errs, ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", cid.Short()),
					Severity: SeverityError,
				})
				continue
			}
			if child.Parent != n.ID {
				errs = append(errs, ValidationError{
					NodeID:   cid,
					Message:  fmt.Sprintf("listed under %s but parent is %s", n.ID.Short(), child.Parent.Short()),
					Severity: SeverityError,
				})
			}
			if prev, dup := seen[cid]; dup {
				errs = append(errs, ValidationError{
					NodeID:   cid,
					Message:  fmt.Sprintf("listed as a child of both %s and %s", prev.Short(), n.ID.Short()),
					Severity: SeverityError,
				})
			}
			seen[cid] = n.ID
		}
	})
	return errs
}

// validateAcyclic checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
// If we encounter a gray node during traversal, we have found a cycle.
func validateAcyclic(g *Graph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is its own ancestor", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node := g.nodes.get(id)
		if node == nil {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}
		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	// Start DFS from every node to catch disconnected cycles.
	stop := false
	g.nodes.each(func(n *Node) {
		if !stop && color[n.ID] == white {
			stop = visit(n.ID)
		}
	})
	return errs
}

// validateReachable warns about nodes that cannot be reached from the root.
func validateReachable(g *Graph) []ValidationError {
	reachable := make(map[NodeID]bool)
	queue := []NodeID{g.root}
	reachable[g.root] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.nodes.get(current)
		if node == nil {
			continue
		}
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	var errs []ValidationError
	g.nodes.each(func(n *Node) {
		if !reachable[n.ID] {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("node %q is not reachable from the root (orphan)", n.label()),
				Severity: SeverityWarning,
			})
		}
	})
	return errs
}
