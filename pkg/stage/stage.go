// Package stage implements the map nodes, their state machine and the
// graph they form.
package stage

import (
	"time"

	"github.com/jwebster45206/map-engine/pkg/restriction"
	"github.com/jwebster45206/map-engine/pkg/state"
)

// Kind tells ordinary stages from special ones.
type Kind string

const (
	KindStage   Kind = "stage"
	KindSpecial Kind = "special-stage"
)

// Special is the feature a special stage runs when clicked.
type Special string

const (
	SpecialNone      Special = ""
	SpecialExtraLife Special = "extra-life"
	SpecialExtraTime Special = "extra-time"
	SpecialLink      Special = "link"
	SpecialFinish    Special = "finish"
)

// Definition is what a Stage is built from.
type Definition struct {
	ID           string
	Label        string
	Kind         Kind
	Special      Special
	Neighbors    []string
	CanBeStart   bool
	Restrictions *restriction.RestrictionsParams

	ExtraLives int
	ExtraTime  time.Duration
	URL        string
}

// Stage is one node of the map.
type Stage struct {
	id         string
	label      string
	kind       Kind
	special    Special
	canBeStart bool
	extraLives int
	extraTime  time.Duration
	url        string

	neighbors    []string
	restrictions *restriction.Restrictions
	roaming      state.Roaming

	state     state.State
	visible   bool
	reachable bool

	onState   func(s *Stage, prev state.State)
	onVisible func(s *Stage)
}

func (s *Stage) ID() string                              { return s.id }
func (s *Stage) Label() string                           { return s.label }
func (s *Stage) Kind() Kind                              { return s.kind }
func (s *Stage) Special() Special                        { return s.special }
func (s *Stage) IsSpecial() bool                         { return s.kind == KindSpecial }
func (s *Stage) CanBeStart() bool                        { return s.canBeStart }
func (s *Stage) ExtraLives() int                         { return s.extraLives }
func (s *Stage) ExtraTime() time.Duration                { return s.extraTime }
func (s *Stage) URL() string                             { return s.url }
func (s *Stage) State() state.State                      { return s.state }
func (s *Stage) Visible() bool                           { return s.visible }
func (s *Stage) Reachable() bool                         { return s.reachable }
func (s *Stage) Restrictions() *restriction.Restrictions { return s.restrictions }

// Neighbors returns the symmetric adjacency list in authored order.
func (s *Stage) Neighbors() []string {
	out := make([]string, len(s.neighbors))
	copy(out, s.neighbors)
	return out
}

// CheckAccess evaluates the access restrictions. failed lists the types of
// the restrictions that did not pass.
func (s *Stage) CheckAccess() (ok bool, failed []string) {
	if s.restrictions.AllPassed() {
		return true, nil
	}
	return false, s.restrictions.Failed()
}

// SetState moves the stage to next if the transition is legal from the
// current state. force skips the check. Invalid states and transitions
// that resolve to the current state are no-ops. It reports whether the
// state changed.
func (s *Stage) SetState(next state.State, force bool) bool {
	if !next.Valid() || next == state.Unstarted {
		return false
	}
	if next == s.state {
		return false
	}
	if !force && !s.canEnter(next) {
		return false
	}
	prev := s.state
	s.state = next
	if s.onState != nil {
		s.onState(s, prev)
	}
	return true
}

func (s *Stage) canEnter(next state.State) bool {
	switch next {
	case state.Locked:
		return s.state == state.Unlocking
	case state.Unlocking:
		return s.state == state.Locked
	case state.Open:
		return s.state == state.Locked || s.state == state.Unlocking
	case state.Opened:
		return s.state == state.Open
	case state.Completed:
		if s.roaming != state.RoamingFree && s.roaming != state.RoamingComplete {
			return false
		}
		return s.state == state.Open || s.state == state.Opened
	case state.Cleared:
		return s.state == state.Open || s.state == state.Opened || s.state == state.Completed
	case state.Sealed:
		return true
	}
	return false
}

func (s *Stage) Show() { s.setVisible(true) }
func (s *Stage) Hide() { s.setVisible(false) }

func (s *Stage) setVisible(visible bool) {
	if s.visible == visible {
		return
	}
	s.visible = visible
	if s.onVisible != nil {
		s.onVisible(s)
	}
}

func (s *Stage) SetReachable(reachable bool) {
	s.reachable = reachable
}

// Snapshot returns the persisted form.
func (s *Stage) Snapshot() state.StageSnapshot {
	return state.StageSnapshot{ID: s.id, State: s.state, Visible: s.visible}
}
