package path

import "github.com/jwebster45206/map-engine/pkg/state"

// Edge is one authored adjacency entry.
type Edge struct {
	From string
	To   string
}

type pairKey struct{ a, b string }

func keyOf(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Paths is the set of connectors of a map, in authored order.
type Paths struct {
	list  []*Path
	byKey map[pairKey]*Path
}

// New builds one Path per unordered pair. Self loops and duplicates
// (including reversed ones) are skipped. onChange fires whenever a path's
// state or visibility changes.
func New(edges []Edge, onChange func(p *Path)) *Paths {
	ps := &Paths{byKey: make(map[pairKey]*Path)}
	for _, e := range edges {
		if e.From == "" || e.To == "" || e.From == e.To {
			continue
		}
		k := keyOf(e.From, e.To)
		if _, ok := ps.byKey[k]; ok {
			continue
		}
		p := &Path{from: e.From, to: e.To, state: state.Open, onChange: onChange}
		ps.byKey[k] = p
		ps.list = append(ps.list, p)
	}
	return ps
}

func (ps *Paths) All() []*Path {
	return ps.list
}

func (ps *Paths) Len() int {
	return len(ps.list)
}

// Get returns the path between a and b in either direction.
func (ps *Paths) Get(a, b string) *Path {
	return ps.byKey[keyOf(a, b)]
}

// Touching returns every path with id as an endpoint.
func (ps *Paths) Touching(id string) []*Path {
	var out []*Path
	for _, p := range ps.list {
		if p.Touches(id) {
			out = append(out, p)
		}
	}
	return out
}

// Reset puts every path back to open, hidden and unreachable.
func (ps *Paths) Reset() {
	for _, p := range ps.list {
		p.Hide()
		p.SetState(state.Open)
		p.SetReachable(false)
	}
}

// SetReachable marks a path reachable iff at least one endpoint is in
// reachable.
func (ps *Paths) SetReachable(reachable map[string]bool) {
	for _, p := range ps.list {
		p.SetReachable(reachable[p.from] || reachable[p.to])
	}
}

func (ps *Paths) Snapshot() []state.PathSnapshot {
	out := make([]state.PathSnapshot, 0, len(ps.list))
	for _, p := range ps.list {
		out = append(out, p.Snapshot())
	}
	return out
}

// Restore applies stored path entries. Unknown pairs and invalid states
// are ignored.
func (ps *Paths) Restore(snaps []state.PathSnapshot) {
	for _, s := range snaps {
		p := ps.Get(s.StageIDs.From, s.StageIDs.To)
		if p == nil {
			continue
		}
		if s.State == state.Open || s.State == state.Cleared {
			p.SetState(s.State)
		}
		p.setVisible(s.Visible)
	}
}
