package state

import "strconv"

// Roaming decides how far a learner may move across the map.
type Roaming string

const (
	RoamingFree     Roaming = "free"     // no gating
	RoamingComplete Roaming = "complete" // unlock neighbors on any finish
	RoamingSuccess  Roaming = "success"  // unlock neighbors on full success only
)

// ParseRoaming falls back to RoamingComplete for unknown values.
func ParseRoaming(s string) Roaming {
	switch Roaming(s) {
	case RoamingFree, RoamingComplete, RoamingSuccess:
		return Roaming(s)
	default:
		return RoamingComplete
	}
}

// Fog is the visibility policy: "all" shows everything, a hop count N
// reveals stages up to N links away from any unlocked stage.
type Fog string

const FogAll Fog = "all"

// Reach returns the reveal distance. all is true when nothing is hidden.
// Unparsable values behave like FogAll.
func (f Fog) Reach() (hops int, all bool) {
	if f == FogAll || f == "" {
		return 0, true
	}
	n, err := strconv.Atoi(string(f))
	if err != nil || n < 0 {
		return 0, true
	}
	return n, false
}
