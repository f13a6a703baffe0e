// Package path holds the connectors between adjacent stages.
package path

import "github.com/jwebster45206/map-engine/pkg/state"

// Path connects two adjacent stages. There is exactly one Path per
// unordered pair of neighbors.
type Path struct {
	from      string
	to        string
	state     state.State
	visible   bool
	reachable bool

	onChange func(p *Path)
}

func (p *Path) From() string         { return p.from }
func (p *Path) To() string           { return p.to }
func (p *Path) State() state.State   { return p.state }
func (p *Path) Visible() bool        { return p.visible }
func (p *Path) Reachable() bool      { return p.reachable }
func (p *Path) Ends() state.PathEnds { return state.PathEnds{From: p.from, To: p.to} }

// Touches reports whether id is one of the endpoints.
func (p *Path) Touches(id string) bool {
	return p.from == id || p.to == id
}

// Other returns the endpoint opposite to id.
func (p *Path) Other(id string) string {
	if p.from == id {
		return p.to
	}
	return p.from
}

// SetState accepts open and cleared only. Other values and repeats are
// no-ops.
func (p *Path) SetState(s state.State) {
	if s != state.Open && s != state.Cleared {
		return
	}
	if p.state == s {
		return
	}
	p.state = s
	p.changed()
}

func (p *Path) Show() { p.setVisible(true) }
func (p *Path) Hide() { p.setVisible(false) }

func (p *Path) setVisible(visible bool) {
	if p.visible == visible {
		return
	}
	p.visible = visible
	p.changed()
}

// SetReachable does not notify; reachability is not rendered.
func (p *Path) SetReachable(reachable bool) {
	p.reachable = reachable
}

func (p *Path) changed() {
	if p.onChange != nil {
		p.onChange(p)
	}
}

// Snapshot returns the persisted form.
func (p *Path) Snapshot() state.PathSnapshot {
	return state.PathSnapshot{StageIDs: p.Ends(), State: p.state, Visible: p.visible}
}
