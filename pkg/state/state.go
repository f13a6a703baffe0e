package state

import (
	"fmt"
	"strconv"
)

// State is the lifecycle state shared by stages, paths and exercise bundles.
// The string form exists only at the (de)serialization boundary.
type State int

const (
	Invalid State = iota - 1
	Unstarted
	Locked
	Unlocking
	Open
	Opened
	Completed
	Cleared
	Sealed
)

var stateNames = map[State]string{
	Unstarted: "unstarted",
	Locked:    "locked",
	Unlocking: "unlocking",
	Open:      "open",
	Opened:    "opened",
	Completed: "completed",
	Cleared:   "cleared",
	Sealed:    "sealed",
}

var statesByName = func() map[string]State {
	m := make(map[string]State, len(stateNames))
	for s, name := range stateNames {
		m[name] = s
	}
	return m
}()

// Parse looks up a state by its authored name.
func Parse(name string) (State, bool) {
	s, ok := statesByName[name]
	if !ok {
		return Invalid, false
	}
	return s, true
}

func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "invalid(" + strconv.Itoa(int(s)) + ")"
}

// IsPlayable reports whether a stage in this state accepts a click.
func (s State) IsPlayable() bool {
	return s == Open || s == Opened || s == Completed || s == Cleared
}

// MarshalText writes the authored name. Invalid states cannot be encoded.
func (s State) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("cannot encode state %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText maps unknown names to Invalid instead of failing so that
// one bad entry in a stored snapshot does not reject the whole document.
func (s *State) UnmarshalText(text []byte) error {
	parsed, _ := Parse(string(text))
	*s = parsed
	return nil
}
