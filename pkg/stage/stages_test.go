package stage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/map-engine/pkg/callbackqueue"
	"github.com/jwebster45206/map-engine/pkg/loop"
	"github.com/jwebster45206/map-engine/pkg/path"
	"github.com/jwebster45206/map-engine/pkg/restriction"
	"github.com/jwebster45206/map-engine/pkg/state"
)

type fakeValues struct{ total int }

func (v *fakeValues) TotalScore() int               { return v.total }
func (v *fakeValues) MaxScore() int                 { return 10 }
func (v *fakeValues) StageScore(string) (int, bool) { return 0, false }
func (v *fakeValues) Now() time.Time                { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }

// chain is a↔b↔c plus an island d↔e.
func chain() []Definition {
	return []Definition{
		{ID: "a", Neighbors: []string{"b"}},
		{ID: "b", Neighbors: []string{"c"}},
		{ID: "c"},
		{ID: "d", Neighbors: []string{"e", "d", "missing"}},
		{ID: "e"},
	}
}

type changeLog struct {
	states  []string
	visible []string
}

func (l *changeLog) hooks() Hooks {
	return Hooks{
		StateChanged:      func(s *Stage, _ state.State) { l.states = append(l.states, s.ID()+":"+s.State().String()) },
		VisibilityChanged: func(s *Stage) { l.visible = append(l.visible, s.ID()) },
	}
}

func TestNew_NeighborsAreSymmetric(t *testing.T) {
	ss := New(chain(), Config{Fog: state.FogAll}, Hooks{})

	assert.Equal(t, []string{"b"}, ss.Get("a").Neighbors())
	assert.Equal(t, []string{"a", "c"}, ss.Get("b").Neighbors())
	assert.Equal(t, []string{"b"}, ss.Get("c").Neighbors())
	assert.Equal(t, []string{"e"}, ss.Get("d").Neighbors())
	assert.Equal(t, 3, ss.Paths().Len())
}

func TestComputeReachableSet(t *testing.T) {
	ss := New(chain(), Config{}, Hooks{})

	tests := []struct {
		name  string
		seeds []string
		want  map[string]bool
	}{
		{"from a", []string{"a"}, map[string]bool{"a": true, "b": true, "c": true}},
		{"from c", []string{"c"}, map[string]bool{"a": true, "b": true, "c": true}},
		{"island", []string{"e"}, map[string]bool{"d": true, "e": true}},
		{"two seeds", []string{"a", "d"}, map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": true}},
		{"unknown", []string{"zzz"}, map[string]bool{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ss.ComputeReachableSet(tt.seeds...))
		})
	}
}

func TestComputeReachableSet_OrderIndependent(t *testing.T) {
	forward := New([]Definition{
		{ID: "a", Neighbors: []string{"b", "c"}},
		{ID: "b", Neighbors: []string{"d"}},
		{ID: "c"}, {ID: "d"},
	}, Config{}, Hooks{})
	backward := New([]Definition{
		{ID: "d", Neighbors: []string{"b"}},
		{ID: "c", Neighbors: []string{"a"}},
		{ID: "b", Neighbors: []string{"a"}},
		{ID: "a"},
	}, Config{}, Hooks{})

	assert.Equal(t, forward.ComputeReachableSet("a"), backward.ComputeReachableSet("a"))
	assert.Equal(t, forward.ComputeReachableSet("d"), backward.ComputeReachableSet("a"))
}

func TestUpdateReachability(t *testing.T) {
	ss := New(chain(), Config{}, Hooks{})
	ss.UpdateReachability("b")

	assert.True(t, ss.Get("a").Reachable())
	assert.False(t, ss.Get("d").Reachable())
	assert.True(t, ss.Paths().Get("a", "b").Reachable())
	assert.False(t, ss.Paths().Get("d", "e").Reachable())
}

func TestSetState_Idempotent(t *testing.T) {
	log := &changeLog{}
	ss := New(chain(), Config{Fog: state.FogAll}, log.hooks())
	st := ss.Get("c")

	assert.True(t, st.SetState(state.Open, false))
	assert.False(t, st.SetState(state.Open, false))
	assert.Equal(t, []string{"c:open"}, log.states)
}

func TestSetState_Guards(t *testing.T) {
	tests := []struct {
		name    string
		roaming state.Roaming
		from    state.State
		to      state.State
		want    state.State
	}{
		{"open from locked", state.RoamingComplete, state.Locked, state.Open, state.Open},
		{"opened needs open", state.RoamingComplete, state.Locked, state.Opened, state.Locked},
		{"completed under complete", state.RoamingComplete, state.Opened, state.Completed, state.Completed},
		{"completed under free", state.RoamingFree, state.Open, state.Completed, state.Completed},
		{"completed under success", state.RoamingSuccess, state.Opened, state.Completed, state.Opened},
		{"cleared from completed", state.RoamingSuccess, state.Completed, state.Cleared, state.Cleared},
		{"unlock a cleared stage", state.RoamingComplete, state.Cleared, state.Unlocking, state.Cleared},
		{"cleared cannot reopen", state.RoamingComplete, state.Cleared, state.Open, state.Cleared},
		{"unstarted is exercise only", state.RoamingComplete, state.Open, state.Unstarted, state.Open},
		{"invalid ignored", state.RoamingComplete, state.Open, state.State(42), state.Open},
		{"sealed from anywhere", state.RoamingComplete, state.Opened, state.Sealed, state.Sealed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := New([]Definition{{ID: "x"}}, Config{Roaming: tt.roaming}, Hooks{})
			st := ss.Get("x")
			st.SetState(tt.from, true)
			st.SetState(tt.to, false)
			assert.Equal(t, tt.want, st.State())
		})
	}
}

func TestSetState_ForceBypassesGuards(t *testing.T) {
	ss := New([]Definition{{ID: "x"}}, Config{}, Hooks{})
	st := ss.Get("x")
	st.SetState(state.Cleared, true)
	st.SetState(state.Locked, true)
	assert.Equal(t, state.Locked, st.State())
}

func TestUnlockChain(t *testing.T) {
	ss := New(chain(), Config{Roaming: state.RoamingComplete, Fog: state.FogAll}, Hooks{})
	ss.Reset("a")

	require.Equal(t, state.Open, ss.Get("a").State())
	require.Equal(t, state.Locked, ss.Get("b").State())

	ss.Get("a").SetState(state.Cleared, false)
	assert.Equal(t, state.Open, ss.Get("b").State())
	assert.Equal(t, state.Locked, ss.Get("c").State())
	assert.Equal(t, state.Cleared, ss.Paths().Get("a", "b").State())
	assert.Equal(t, state.Open, ss.Paths().Get("b", "c").State())

	ss.Get("b").SetState(state.Cleared, false)
	assert.Equal(t, state.Open, ss.Get("c").State())
}

func TestPropagation_CompletedUnlocksOnlyUnderComplete(t *testing.T) {
	for _, tt := range []struct {
		roaming state.Roaming
		want    state.State
	}{
		{state.RoamingComplete, state.Open},
		{state.RoamingSuccess, state.Locked},
	} {
		t.Run(string(tt.roaming), func(t *testing.T) {
			ss := New(chain(), Config{Roaming: tt.roaming, Fog: state.FogAll}, Hooks{})
			ss.Reset("a")
			ss.Get("a").SetState(state.Opened, false)
			ss.Get("a").SetState(state.Completed, false)
			assert.Equal(t, tt.want, ss.Get("b").State())
			assert.Equal(t, state.Open, ss.Paths().Get("a", "b").State())
		})
	}
}

func TestUnlock_WaitsForQueue(t *testing.T) {
	m := loop.NewManual(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	q := callbackqueue.New(m, true)
	ss := New(chain(), Config{Fog: state.FogAll, Queue: q, UnlockDelay: 200 * time.Millisecond}, Hooks{})
	ss.Reset("a")

	q.SetSkippable(false)
	ss.Get("a").SetState(state.Cleared, false)
	assert.Equal(t, state.Unlocking, ss.Get("b").State())

	q.SetSkippable(true)
	q.ScheduleQueued()
	m.Flush()
	assert.Equal(t, state.Open, ss.Get("b").State())
}

func TestFreeRoamingReset(t *testing.T) {
	log := &changeLog{}
	ss := New(chain(), Config{Roaming: state.RoamingFree, Fog: "0"}, log.hooks())
	ss.Reset("a")

	for _, st := range ss.All() {
		assert.Equal(t, state.Open, st.State(), st.ID())
		assert.True(t, st.Visible(), st.ID())
	}
	for _, p := range ss.Paths().All() {
		assert.Equal(t, state.Cleared, p.State())
		assert.True(t, p.Visible())
	}

	log.states = nil
	ss.Get("a").SetState(state.Cleared, false)
	assert.Equal(t, []string{"a:cleared"}, log.states, "no neighbor propagation")
}

func TestReset_RestartsPaths(t *testing.T) {
	var changed []string
	ss := New(chain(), Config{Roaming: state.RoamingComplete, Fog: "0"}, Hooks{
		PathChanged: func(p *path.Path) { changed = append(changed, p.From()+"-"+p.To()) },
	})
	ss.Reset("a")
	ss.Get("a").SetState(state.Cleared, false)
	ss.UpdateReachability("a")

	ab := ss.Paths().Get("a", "b")
	require.Equal(t, state.Cleared, ab.State())
	require.True(t, ab.Visible())
	require.True(t, ab.Reachable())

	changed = nil
	ss.Reset("c")
	assert.Equal(t, state.Open, ab.State())
	assert.False(t, ab.Visible())
	assert.False(t, ab.Reachable())
	assert.Contains(t, changed, "a-b", "reset reports the path change")
}

func TestFogHops(t *testing.T) {
	line := []Definition{
		{ID: "a", Neighbors: []string{"b"}},
		{ID: "b", Neighbors: []string{"c"}},
		{ID: "c", Neighbors: []string{"d"}},
		{ID: "d"},
	}
	tests := []struct {
		fog     state.Fog
		visible []string
	}{
		{"0", []string{"a"}},
		{"1", []string{"a", "b"}},
		{"2", []string{"a", "b", "c"}},
		{state.FogAll, []string{"a", "b", "c", "d"}},
		{"bogus", []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.fog), func(t *testing.T) {
			ss := New(line, Config{Fog: tt.fog}, Hooks{})
			ss.Reset("a")
			var got []string
			for _, st := range ss.All() {
				if st.Visible() {
					got = append(got, st.ID())
				}
			}
			assert.Equal(t, tt.visible, got)
		})
	}
}

func TestFog_PathsNeedBothEndsVisible(t *testing.T) {
	ss := New(chain(), Config{Fog: "1"}, Hooks{})
	ss.Reset("a")

	assert.True(t, ss.Paths().Get("a", "b").Visible())
	assert.False(t, ss.Paths().Get("b", "c").Visible())

	ss.Get("a").SetState(state.Cleared, false)
	assert.True(t, ss.Get("c").Visible())
	assert.True(t, ss.Paths().Get("b", "c").Visible())
}

func TestStartCandidates(t *testing.T) {
	ss := New([]Definition{
		{ID: "a"},
		{ID: "s", Kind: KindSpecial, Special: SpecialExtraLife},
		{ID: "b"},
	}, Config{}, Hooks{})
	assert.Len(t, ss.StartCandidates(), 2)
	assert.Equal(t, "b", ss.PickStart(func(n int) int { return n - 1 }).ID())
	assert.Equal(t, "a", ss.PickStart(func(int) int { return 99 }).ID())

	flagged := New([]Definition{{ID: "a"}, {ID: "b", CanBeStart: true}}, Config{}, Hooks{})
	assert.Equal(t, "b", flagged.PickStart(func(int) int { return 0 }).ID())

	assert.Nil(t, New(nil, Config{}, Hooks{}).PickStart(nil))
}

func TestSealAndUnseal(t *testing.T) {
	ss := New(chain(), Config{Fog: state.FogAll}, Hooks{})
	ss.Reset("a")
	ss.Get("a").SetState(state.Cleared, false)
	before := ss.States()

	saved := ss.Seal()
	for _, st := range ss.All() {
		assert.Equal(t, state.Sealed, st.State())
	}
	ss.Unseal(saved)
	assert.Equal(t, before, ss.States())
}

func TestRestore(t *testing.T) {
	ss := New(chain(), Config{Fog: "0"}, Hooks{})
	ss.Reset("a")
	ss.Restore([]state.StageSnapshot{
		{ID: "a", State: state.Cleared, Visible: true},
		{ID: "b", State: state.Unlocking, Visible: true},
		{ID: "c", State: state.Invalid, Visible: false},
		{ID: "ghost", State: state.Open, Visible: true},
	})

	assert.Equal(t, state.Cleared, ss.Get("a").State())
	assert.Equal(t, state.Open, ss.Get("b").State())
	assert.Equal(t, state.Locked, ss.Get("c").State())
	assert.True(t, ss.Get("b").Visible())
}

func TestCheckAccess(t *testing.T) {
	values := &fakeValues{total: 3}
	ss := New([]Definition{{
		ID: "d",
		Restrictions: &restriction.RestrictionsParams{Sets: []restriction.SetParams{{
			Restrictions: []restriction.Params{{Type: restriction.TypeTotalScore, Operator: restriction.OpGreaterThanOrEqual, Value: "5"}},
		}}},
	}, {ID: "e"}}, Config{Values: values}, Hooks{})

	ok, failed := ss.Get("d").CheckAccess()
	assert.False(t, ok)
	assert.Equal(t, []string{restriction.TypeTotalScore}, failed)

	values.total = 5
	ok, _ = ss.Get("d").CheckAccess()
	assert.True(t, ok)

	ok, _ = ss.Get("e").CheckAccess()
	assert.True(t, ok)
}
