package interp

import (
	"fmt"

	"github.com/chazu/arbor/pkg/events"
	"github.com/chazu/arbor/pkg/graph"
)

// Action is what a pointer press did.
type Action int

const (
	ActionNone Action = iota
	ActionSelect
	ActionEmit
	ActionLink
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionSelect:
		return "select"
	case ActionEmit:
		return "emit"
	case ActionLink:
		return "link"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// PointerResult describes the outcome of PointerDown.
type PointerResult struct {
	Action Action
	Node   graph.NodeID // node that handled the press
	Event  events.SceneEvent
	URL    string
	Err    error // link opener failure
}

// PointerDown handles a press on node id. In edit mode it selects the node.
// In play mode the nearest PointerEvent on the node or its ancestors
// decides: an emit broadcasts a scene event on the bus, a link is handed to
// the link opener.
func (in *Interpreter) PointerDown(g *graph.Graph, id graph.NodeID) PointerResult {
	if g == nil || !g.Has(id) {
		return PointerResult{}
	}
	if in.ctx.Mode == ModeEdit {
		if in.ctx.Selection == nil || !in.ctx.Selection.Select(id) {
			return PointerResult{}
		}
		return PointerResult{Action: ActionSelect, Node: id}
	}

	owner, pe, ok := nearestPointerEvent(g, id)
	if !ok {
		return PointerResult{}
	}
	switch pe.Mode {
	case graph.PointerEmit:
		name := pe.Event
		if name == "" {
			name = g.FindByID(owner).Name
		}
		e := events.NewSceneEvent(name, owner)
		in.ctx.Bus.Emit(e)
		in.ctx.Log.Debug("scene event", "node", owner, "event", name)
		return PointerResult{Action: ActionEmit, Node: owner, Event: e}
	case graph.PointerLink:
		err := in.ctx.OpenLink(pe.URL)
		if err != nil {
			in.ctx.Log.Warn("open link", "node", owner, "url", pe.URL, "err", err)
		}
		return PointerResult{Action: ActionLink, Node: owner, URL: pe.URL, Err: err}
	}
	return PointerResult{}
}

func nearestPointerEvent(g *graph.Graph, id graph.NodeID) (graph.NodeID, graph.PointerEvent, bool) {
	path := g.Path(id)
	for i := len(path) - 1; i >= 0; i-- {
		if pe, ok := graph.Find[graph.PointerEvent](g.FindByID(path[i])); ok {
			return path[i], pe, true
		}
	}
	return graph.ZeroID, graph.PointerEvent{}, false
}
