package stage

import (
	"time"

	"github.com/jwebster45206/map-engine/pkg/callbackqueue"
	"github.com/jwebster45206/map-engine/pkg/path"
	"github.com/jwebster45206/map-engine/pkg/restriction"
	"github.com/jwebster45206/map-engine/pkg/state"
)

// Config carries the map-wide settings the collection needs.
type Config struct {
	Roaming state.Roaming
	Fog     state.Fog

	// Queue sequences the second half of an unlock. Nil opens at once.
	Queue       *callbackqueue.Queue
	UnlockDelay time.Duration

	Values   restriction.Values
	Registry *restriction.Registry
}

// Hooks let the owner observe the graph. StateChanged fires before
// neighbors are updated; Settled fires once they and the fog have been
// brought up to date.
type Hooks struct {
	StateChanged      func(s *Stage, prev state.State)
	VisibilityChanged func(s *Stage)
	PathChanged       func(p *path.Path)
	Settled           func(s *Stage)
}

// Stages owns every stage and path of a map.
type Stages struct {
	list  []*Stage
	byID  map[string]*Stage
	paths *path.Paths

	cfg   Config
	hooks Hooks

	// quiet suppresses propagation during bulk updates.
	quiet bool
}

// New builds the graph. Neighbor lists are made symmetric and references
// to unknown ids or to the stage itself are dropped. Duplicate ids keep
// the first definition.
func New(defs []Definition, cfg Config, hooks Hooks) *Stages {
	if cfg.Registry == nil {
		cfg.Registry = restriction.DefaultRegistry
	}
	cfg.Roaming = state.ParseRoaming(string(cfg.Roaming))

	ss := &Stages{
		byID:  make(map[string]*Stage, len(defs)),
		cfg:   cfg,
		hooks: hooks,
	}

	for _, d := range defs {
		if d.ID == "" {
			continue
		}
		if _, dup := ss.byID[d.ID]; dup {
			continue
		}
		kind := d.Kind
		if kind != KindSpecial {
			kind = KindStage
		}
		st := &Stage{
			id:         d.ID,
			label:      d.Label,
			kind:       kind,
			special:    d.Special,
			canBeStart: d.CanBeStart,
			extraLives: d.ExtraLives,
			extraTime:  d.ExtraTime,
			url:        d.URL,
			roaming:    cfg.Roaming,
			state:      state.Locked,
			onState:    ss.handleState,
			onVisible:  ss.handleVisible,
		}
		if kind == KindStage {
			st.special = SpecialNone
		}
		st.restrictions = cfg.Registry.New(d.Restrictions, cfg.Values)
		ss.byID[d.ID] = st
		ss.list = append(ss.list, st)
	}

	var edges []path.Edge
	for _, d := range defs {
		st, ok := ss.byID[d.ID]
		if !ok {
			continue
		}
		for _, n := range d.Neighbors {
			other, ok := ss.byID[n]
			if !ok || other == st {
				continue
			}
			st.addNeighbor(other.id)
			other.addNeighbor(st.id)
			edges = append(edges, path.Edge{From: st.id, To: other.id})
		}
	}
	ss.paths = path.New(edges, ss.handlePath)
	return ss
}

func (s *Stage) addNeighbor(id string) {
	for _, n := range s.neighbors {
		if n == id {
			return
		}
	}
	s.neighbors = append(s.neighbors, id)
}

func (ss *Stages) All() []*Stage        { return ss.list }
func (ss *Stages) Len() int             { return len(ss.list) }
func (ss *Stages) Get(id string) *Stage { return ss.byID[id] }
func (ss *Stages) Paths() *path.Paths   { return ss.paths }
func (ss *Stages) Roaming() state.Roaming {
	return ss.cfg.Roaming
}

// Reset reinitializes every stage and path for a new run starting at
// startID. Under free roaming everything is open and every path cleared.
func (ss *Stages) Reset(startID string) {
	ss.quiet = true
	ss.paths.Reset()
	for _, st := range ss.list {
		st.Hide()
		st.SetReachable(false)
		if ss.cfg.Roaming == state.RoamingFree {
			st.SetState(state.Open, true)
		} else {
			st.SetState(state.Locked, true)
		}
	}
	if ss.cfg.Roaming == state.RoamingFree {
		for _, p := range ss.paths.All() {
			p.SetState(state.Cleared)
			p.Show()
		}
	} else if start := ss.byID[startID]; start != nil {
		start.SetState(state.Open, true)
	}
	ss.quiet = false
	ss.UpdateVisibility()
}

// Unlock starts the locked → unlocking → open sequence. The final step
// goes through the callback queue so it plays after the exercise view
// closes. Stages that are not locked are left alone.
func (ss *Stages) Unlock(st *Stage) {
	if st == nil || st.state != state.Locked {
		return
	}
	st.SetState(state.Unlocking, false)
	open := func() { st.SetState(state.Open, false) }
	if ss.cfg.Queue == nil {
		open()
		return
	}
	ss.cfg.Queue.Add(open, callbackqueue.Options{Delay: ss.cfg.UnlockDelay})
}

func (ss *Stages) handleState(st *Stage, prev state.State) {
	if ss.hooks.StateChanged != nil {
		ss.hooks.StateChanged(st, prev)
	}
	if ss.quiet {
		return
	}
	ss.propagate(st)
	ss.UpdateVisibility()
	if ss.hooks.Settled != nil {
		ss.hooks.Settled(st)
	}
}

func (ss *Stages) handleVisible(st *Stage) {
	if ss.hooks.VisibilityChanged != nil {
		ss.hooks.VisibilityChanged(st)
	}
}

func (ss *Stages) handlePath(p *path.Path) {
	if ss.hooks.PathChanged != nil {
		ss.hooks.PathChanged(p)
	}
}

// propagate applies the roaming policy to the neighbors of st.
func (ss *Stages) propagate(st *Stage) {
	if ss.cfg.Roaming == state.RoamingFree {
		return
	}
	unlock := false
	switch st.state {
	case state.Cleared:
		for _, p := range ss.paths.Touching(st.id) {
			p.SetState(state.Cleared)
		}
		unlock = true
	case state.Completed:
		unlock = ss.cfg.Roaming == state.RoamingComplete
	}
	if !unlock {
		return
	}
	for _, id := range st.neighbors {
		ss.Unlock(ss.byID[id])
	}
}

// UpdateVisibility reveals stages and paths according to the fog policy.
// Visibility only grows between resets.
func (ss *Stages) UpdateVisibility() {
	hops, all := ss.cfg.Fog.Reach()
	if all {
		for _, st := range ss.list {
			st.Show()
		}
		for _, p := range ss.paths.All() {
			p.Show()
		}
		return
	}

	var sources []string
	for _, st := range ss.list {
		if st.state != state.Locked && st.state != state.Sealed {
			sources = append(sources, st.id)
		}
	}
	for id := range ss.withinHops(sources, hops) {
		ss.byID[id].Show()
	}
	for _, p := range ss.paths.All() {
		if ss.byID[p.From()].visible && ss.byID[p.To()].visible {
			p.Show()
		}
	}
}

// Restore applies stored stage entries without running propagation.
// Unlocking stages come back open; unknown ids and invalid states are
// skipped.
func (ss *Stages) Restore(snaps []state.StageSnapshot) {
	ss.quiet = true
	defer func() { ss.quiet = false }()
	for _, snap := range snaps {
		st := ss.byID[snap.ID]
		if st == nil {
			continue
		}
		next := snap.State
		if next == state.Unlocking {
			next = state.Open
		}
		if next.Valid() {
			st.SetState(next, true)
		}
		st.setVisible(snap.Visible)
	}
}

// Seal forces every stage into sealed and returns the states they had.
// A stage caught unlocking is recorded as open.
func (ss *Stages) Seal() map[string]state.State {
	saved := ss.States()
	for id, s := range saved {
		if s == state.Unlocking {
			saved[id] = state.Open
		}
	}
	ss.quiet = true
	for _, st := range ss.list {
		st.SetState(state.Sealed, true)
	}
	ss.quiet = false
	return saved
}

// Unseal puts back states saved by Seal.
func (ss *Stages) Unseal(saved map[string]state.State) {
	ss.quiet = true
	for _, st := range ss.list {
		if s, ok := saved[st.id]; ok && s.Valid() {
			st.SetState(s, true)
		}
	}
	ss.quiet = false
}

// States maps every stage id to its current state.
func (ss *Stages) States() map[string]state.State {
	out := make(map[string]state.State, len(ss.list))
	for _, st := range ss.list {
		out[st.id] = st.state
	}
	return out
}

func (ss *Stages) Snapshot() []state.StageSnapshot {
	out := make([]state.StageSnapshot, 0, len(ss.list))
	for _, st := range ss.list {
		out = append(out, st.Snapshot())
	}
	return out
}
