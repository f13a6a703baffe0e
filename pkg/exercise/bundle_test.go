package exercise

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/map-engine/pkg/loop"
	"github.com/jwebster45206/map-engine/pkg/state"
)

var epoch = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func twoTasks() BundleDefinition {
	return BundleDefinition{
		ID:           "cave",
		SubContentID: "content-cave",
		Exercises: []Definition{
			{ID: "q1", Type: "MultiChoice", IsTask: true, MaxScore: 2},
			{ID: "q2", Type: "TrueFalse", IsTask: true, MaxScore: 1},
		},
	}
}

type events struct {
	states    []string
	completed int
	timeouts  int
	warnings  []time.Duration
}

func (e *events) hooks() Hooks {
	return Hooks{
		StateChanged: func(b *Bundle, _ state.State) { e.states = append(e.states, b.State().String()) },
		Completed:    func(*Bundle) { e.completed++ },
		Warning:      func(_ *Bundle, d time.Duration) { e.warnings = append(e.warnings, d) },
		Timeout:      func(*Bundle) { e.timeouts++ },
	}
}

func TestBundle_ScoresToCleared(t *testing.T) {
	m := loop.NewManual(epoch)
	ev := &events{}
	b := NewBundle(twoTasks(), Config{Scheduler: m}, ev.hooks())

	b.Open()
	assert.Equal(t, state.Opened, b.State())
	assert.Equal(t, 3, b.MaxScore())

	assert.False(t, b.HandleScored("q1", 2, 2))
	assert.False(t, b.IsCompleted())
	assert.False(t, b.CanContinue())

	assert.False(t, b.HandleScored("q2", 1, 1))
	assert.Equal(t, state.Cleared, b.State())
	assert.True(t, b.IsCompleted())
	assert.True(t, b.AllSuccessful())
	assert.Equal(t, []string{"opened", "cleared"}, ev.states)

	assert.Equal(t, 0, ev.completed, "completed waits one turn")
	m.Flush()
	assert.Equal(t, 1, ev.completed)
}

func TestBundle_FinishedWithMistakes(t *testing.T) {
	m := loop.NewManual(epoch)
	ev := &events{}
	b := NewBundle(twoTasks(), Config{Scheduler: m, Roaming: state.RoamingComplete}, ev.hooks())
	b.Open()

	assert.True(t, b.HandleScored("q1", 1, 2), "partial score costs a life")
	assert.False(t, b.HandleScored("q2", 1, 1))
	assert.Equal(t, state.Completed, b.State())
	assert.True(t, b.CanContinue())

	assert.False(t, b.HandleScored("q1", 2, 2))
	assert.Equal(t, state.Cleared, b.State())
	m.Flush()
	assert.Equal(t, 1, ev.completed, "pending notification replaced")
}

func TestBundle_ScoreNeverExceedsMax(t *testing.T) {
	b := NewBundle(twoTasks(), Config{}, Hooks{})
	b.Open()

	scores := [][2]int{{5, 2}, {-3, 2}, {7, 0}, {1, 4}}
	for _, s := range scores {
		b.HandleScored("q1", s[0], s[1])
		assert.LessOrEqual(t, b.Score(), b.MaxScore())
		assert.GreaterOrEqual(t, b.Exercise("q1").Score(), 0)
	}
	assert.Equal(t, 4, b.Exercise("q1").MaxScore())
}

func TestBundle_IgnoresScoresBeforeOpen(t *testing.T) {
	b := NewBundle(twoTasks(), Config{}, Hooks{})
	assert.False(t, b.HandleScored("q1", 0, 2))
	assert.Equal(t, state.Unstarted, b.State())
	assert.False(t, b.AnswerGiven())

	b.Open()
	assert.False(t, b.HandleScored("nope", 0, 2))
	assert.False(t, b.AnswerGiven())
}

func TestBundle_WithoutTasksClearsOnOpen(t *testing.T) {
	m := loop.NewManual(epoch)
	ev := &events{}
	b := NewBundle(BundleDefinition{
		ID:        "intro",
		Exercises: []Definition{{ID: "text", Type: "AdvancedText"}},
	}, Config{Scheduler: m}, ev.hooks())

	b.Open()
	assert.Equal(t, state.Cleared, b.State())
	assert.Equal(t, 0, b.MaxScore())
	m.Flush()
	assert.Equal(t, 1, ev.completed)
}

func TestBundle_ContinuePolicy(t *testing.T) {
	tests := []struct {
		roaming   state.Roaming
		beforeAll bool
		partial   bool
		perfect   bool
	}{
		{state.RoamingFree, true, true, true},
		{state.RoamingComplete, false, true, true},
		{state.RoamingSuccess, false, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.roaming), func(t *testing.T) {
			b := NewBundle(twoTasks(), Config{Roaming: tt.roaming}, Hooks{})
			b.Open()
			assert.Equal(t, tt.beforeAll, b.CanContinue())

			b.HandleScored("q1", 1, 2)
			b.HandleScored("q2", 1, 1)
			assert.Equal(t, tt.partial, b.CanContinue())

			b.HandleScored("q1", 2, 2)
			assert.Equal(t, tt.perfect, b.CanContinue())
		})
	}
}

func TestBundle_CompletedIsMonotonic(t *testing.T) {
	b := NewBundle(twoTasks(), Config{}, Hooks{})
	b.Open()
	b.HandleScored("q1", 0, 2)
	b.HandleScored("q2", 0, 1)
	require.True(t, b.IsCompleted())

	b.HandleScored("q1", 1, 2)
	assert.True(t, b.IsCompleted())

	b.Reset(nil)
	assert.False(t, b.IsCompleted())
	assert.Equal(t, state.Unstarted, b.State())
	assert.Equal(t, 0, b.Score())
}

func TestBundle_ClearedResultsAreFrozen(t *testing.T) {
	ev := &events{}
	b := NewBundle(twoTasks(), Config{}, ev.hooks())
	b.Open()
	b.HandleScored("q1", 2, 2)
	b.HandleScored("q2", 1, 1)
	require.Equal(t, state.Cleared, b.State())

	b.Close()
	b.Open()
	assert.False(t, b.HandleScored("q1", 0, 2), "replaying a cleared bundle costs no life")
	assert.Equal(t, state.Cleared, b.State())
	assert.True(t, b.AllSuccessful())
	assert.Equal(t, 3, b.Score())
	assert.Equal(t, []string{"opened", "cleared"}, ev.states)
}

func timed() BundleDefinition {
	def := twoTasks()
	def.TimeLimit = 10 * time.Second
	def.TimeLimitWarning = 3 * time.Second
	return def
}

func TestBundle_TimerRunsWhileOpen(t *testing.T) {
	m := loop.NewManual(epoch)
	ev := &events{}
	b := NewBundle(timed(), Config{Scheduler: m, TickInterval: time.Second}, ev.hooks())

	b.Open()
	m.Advance(4 * time.Second)
	b.Close()
	assert.Equal(t, 6*time.Second, b.Remaining())

	m.Advance(time.Minute)
	assert.Equal(t, 6*time.Second, b.Remaining())

	b.Open()
	m.Advance(3 * time.Second)
	assert.Equal(t, []time.Duration{3 * time.Second}, ev.warnings)
	m.Advance(3 * time.Second)
	assert.Equal(t, 1, ev.timeouts)

	b.Close()
	b.Open()
	assert.Equal(t, 10*time.Second, b.Remaining(), "expired timer restarts in full")
}

func TestBundle_TimerStopsWhenDone(t *testing.T) {
	m := loop.NewManual(epoch)
	ev := &events{}
	b := NewBundle(timed(), Config{Scheduler: m, TickInterval: time.Second}, ev.hooks())

	b.Open()
	m.Advance(2 * time.Second)
	b.HandleScored("q1", 2, 2)
	b.HandleScored("q2", 1, 1)
	m.Advance(time.Minute)

	assert.Equal(t, 8*time.Second, b.Remaining())
	assert.Equal(t, 0, ev.timeouts)
}

func TestBundle_SnapshotRoundTrip(t *testing.T) {
	m := loop.NewManual(epoch)
	src := NewBundle(timed(), Config{Scheduler: m, TickInterval: time.Second, Grace: 500 * time.Millisecond}, Hooks{})
	src.Open()
	m.Advance(1500 * time.Millisecond)
	src.HandleScored("q1", 1, 2)
	src.SetContent("q1", json.RawMessage(`{"answers":[1]}`))
	src.Close()

	snap := src.Snapshot()
	require.NotNil(t, snap.RemainingTime)
	assert.Equal(t, int64(8500), *snap.RemainingTime)

	dst := NewBundle(timed(), Config{Scheduler: m, TickInterval: time.Second, Grace: 500 * time.Millisecond}, Hooks{})
	dst.Reset(&snap)

	assert.Equal(t, src.Snapshot(), dst.Snapshot())
	assert.Equal(t, src.Score(), dst.Score())
	assert.Equal(t, state.Opened, dst.State())
	assert.JSONEq(t, `{"answers":[1]}`, string(dst.Exercise("q1").Content()))
}

func TestBundle_RestoreClampsRemaining(t *testing.T) {
	m := loop.NewManual(epoch)
	b := NewBundle(timed(), Config{Scheduler: m, Grace: time.Second}, Hooks{})
	huge := int64(time.Hour / time.Millisecond)
	b.Reset(&state.BundleSnapshot{ID: "cave", State: state.Opened, RemainingTime: &huge})

	assert.Equal(t, 11*time.Second, b.Remaining())
}

func TestBundles_ReachableTotals(t *testing.T) {
	bs := NewBundles([]BundleDefinition{
		twoTasks(),
		{ID: "island", Exercises: []Definition{{ID: "x", IsTask: true, MaxScore: 5}}},
		{ID: "cave"},
	}, Config{}, Hooks{})
	require.Len(t, bs.All(), 2)

	bs.SetReachable(map[string]bool{"cave": true})
	cave := bs.Get("cave")
	cave.Open()
	cave.HandleScored("q1", 2, 2)

	island := bs.Get("island")
	island.Open()
	island.HandleScored("x", 5, 5)

	assert.Equal(t, 2, bs.Score())
	assert.Equal(t, 3, bs.MaxScore())
	assert.True(t, bs.AnswerGiven())
}
