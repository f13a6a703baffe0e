package exercise

import (
	"encoding/json"
	"time"

	"github.com/jwebster45206/map-engine/pkg/loop"
	"github.com/jwebster45206/map-engine/pkg/state"
	"github.com/jwebster45206/map-engine/pkg/timer"
)

// BundleDefinition describes the content of one stage.
type BundleDefinition struct {
	ID               string // the stage id
	SubContentID     string
	TimeLimit        time.Duration
	TimeLimitWarning time.Duration
	Exercises        []Definition
}

// Config is shared by every bundle of a map.
type Config struct {
	Roaming   state.Roaming
	Scheduler loop.Scheduler
	// Grace is added to the time limit when a stored remaining time is
	// restored, usually the animation duration.
	Grace        time.Duration
	TickInterval time.Duration
}

// Hooks report bundle events to the owner. Completed fires one scheduler
// turn after the bundle reaches completed or cleared.
type Hooks struct {
	StateChanged func(b *Bundle, prev state.State)
	Completed    func(b *Bundle)
	Tick         func(b *Bundle, remaining time.Duration)
	Warning      func(b *Bundle, remaining time.Duration)
	Timeout      func(b *Bundle)
}

// Bundle is the exercise content of a stage, scored as a unit.
type Bundle struct {
	id           string
	subContentID string
	cfg          Config
	hooks        Hooks

	exercises []*Exercise
	byID      map[string]*Exercise

	state       state.State
	isCompleted bool
	reachable   bool
	open        bool

	timer     *timer.Timer
	completed loop.Handle
}

func NewBundle(def BundleDefinition, cfg Config, hooks Hooks) *Bundle {
	cfg.Roaming = state.ParseRoaming(string(cfg.Roaming))
	b := &Bundle{
		id:           def.ID,
		subContentID: def.SubContentID,
		cfg:          cfg,
		hooks:        hooks,
		byID:         make(map[string]*Exercise, len(def.Exercises)),
		state:        state.Unstarted,
	}
	for _, d := range def.Exercises {
		if d.ID == "" {
			continue
		}
		if _, dup := b.byID[d.ID]; dup {
			continue
		}
		ex := newExercise(d)
		b.exercises = append(b.exercises, ex)
		b.byID[d.ID] = ex
	}
	if def.TimeLimit > 0 && cfg.Scheduler != nil {
		b.timer = timer.New(cfg.Scheduler, def.TimeLimit, timer.Options{
			Interval:  cfg.TickInterval,
			WarningAt: def.TimeLimitWarning,
			OnTick: func(remaining time.Duration) {
				if b.hooks.Tick != nil {
					b.hooks.Tick(b, remaining)
				}
			},
			OnWarning: func(remaining time.Duration) {
				if b.hooks.Warning != nil {
					b.hooks.Warning(b, remaining)
				}
			},
			OnExpired: func() {
				if b.hooks.Timeout != nil {
					b.hooks.Timeout(b)
				}
			},
		})
	}
	return b
}

func (b *Bundle) ID() string                  { return b.id }
func (b *Bundle) SubContentID() string        { return b.subContentID }
func (b *Bundle) State() state.State          { return b.state }
func (b *Bundle) IsCompleted() bool           { return b.isCompleted }
func (b *Bundle) IsOpen() bool                { return b.open }
func (b *Bundle) Reachable() bool             { return b.reachable }
func (b *Bundle) SetReachable(reachable bool) { b.reachable = reachable }
func (b *Bundle) Exercises() []*Exercise      { return b.exercises }
func (b *Bundle) Exercise(id string) *Exercise {
	return b.byID[id]
}

func (b *Bundle) Score() int {
	total := 0
	for _, ex := range b.exercises {
		total += ex.score
	}
	return total
}

func (b *Bundle) MaxScore() int {
	total := 0
	for _, ex := range b.exercises {
		total += ex.maxScore
	}
	return total
}

// AnswerGiven reports whether any task was answered.
func (b *Bundle) AnswerGiven() bool {
	for _, ex := range b.exercises {
		if ex.isTask && ex.completed {
			return true
		}
	}
	return false
}

// AllSuccessful reports whether every exercise has full marks.
func (b *Bundle) AllSuccessful() bool {
	for _, ex := range b.exercises {
		if !ex.Successful() {
			return false
		}
	}
	return true
}

func (b *Bundle) allFinished() bool {
	for _, ex := range b.exercises {
		if !ex.Finished() {
			return false
		}
	}
	return true
}

func (b *Bundle) hasTasks() bool {
	for _, ex := range b.exercises {
		if ex.isTask {
			return true
		}
	}
	return false
}

// HasTimer reports whether the bundle has a time limit.
func (b *Bundle) HasTimer() bool {
	return b.timer != nil
}

// Remaining is the time left on the bundle timer, zero without one.
func (b *Bundle) Remaining() time.Duration {
	if b.timer == nil {
		return 0
	}
	return b.timer.Remaining()
}

// CanContinue applies the roaming policy: free always, complete once every
// exercise is finished, success once every exercise has full marks.
func (b *Bundle) CanContinue() bool {
	switch b.cfg.Roaming {
	case state.RoamingFree:
		return true
	case state.RoamingSuccess:
		return b.AllSuccessful()
	default:
		return b.isCompleted
	}
}

// timeUp reports whether the timer has nothing left to guard. Under free
// roaming the learner may leave at any time but the clock still runs
// until every exercise is finished.
func (b *Bundle) timeUp() bool {
	if b.cfg.Roaming == state.RoamingSuccess {
		return b.AllSuccessful()
	}
	return b.isCompleted
}

// Open shows the bundle. The first open moves it to opened; a bundle
// without tasks clears itself. The timer runs until the bundle is done.
// Opening an open bundle is a no-op.
func (b *Bundle) Open() {
	if b.open {
		return
	}
	b.open = true
	b.setState(state.Opened)
	if !b.hasTasks() {
		b.evaluate()
	}
	if b.timer != nil && !b.timeUp() {
		if b.timer.Expired() {
			b.timer.Reset()
		}
		b.timer.Start()
	}
}

// Close hides the bundle and pauses its timer.
func (b *Bundle) Close() {
	b.open = false
	if b.timer != nil {
		b.timer.Stop()
	}
}

// HandleScored records the result of one exercise and reports whether it
// costs a life: a task answered below its maximum. Unknown exercises,
// bundles that were never opened and cleared bundles are ignored.
func (b *Bundle) HandleScored(exerciseID string, score, maxScore int) (lostLife bool) {
	if b.state == state.Unstarted || b.state == state.Cleared {
		return false
	}
	ex := b.byID[exerciseID]
	if ex == nil {
		return false
	}
	ex.setScore(score, maxScore)
	b.evaluate()
	return ex.isTask && ex.score < ex.maxScore
}

// SetContent stores opaque host state for an exercise.
func (b *Bundle) SetContent(exerciseID string, content json.RawMessage) {
	if ex := b.byID[exerciseID]; ex != nil {
		ex.content = content
	}
}

func (b *Bundle) evaluate() {
	if b.allFinished() {
		b.isCompleted = true
	}
	changed := false
	if b.AllSuccessful() {
		changed = b.setState(state.Cleared)
	} else if b.isCompleted {
		changed = b.setState(state.Completed)
	}
	if changed {
		b.scheduleCompleted()
	}
	if b.timer != nil && b.timeUp() {
		b.timer.Stop()
	}
}

func (b *Bundle) scheduleCompleted() {
	if b.hooks.Completed == nil || b.cfg.Scheduler == nil {
		return
	}
	if b.completed != nil {
		b.completed.Stop()
	}
	b.completed = b.cfg.Scheduler.AfterFunc(0, func() {
		b.completed = nil
		b.hooks.Completed(b)
	})
}

func (b *Bundle) setState(next state.State) bool {
	if next == b.state {
		return false
	}
	switch next {
	case state.Opened:
		if b.state != state.Unstarted {
			return false
		}
	case state.Completed:
		if b.state != state.Opened {
			return false
		}
	case state.Cleared:
		if b.state != state.Opened && b.state != state.Completed {
			return false
		}
	default:
		return false
	}
	prev := b.state
	b.state = next
	if b.hooks.StateChanged != nil {
		b.hooks.StateChanged(b, prev)
	}
	return true
}

// Stop halts the timer and drops a pending completed notification.
func (b *Bundle) Stop() {
	b.open = false
	if b.timer != nil {
		b.timer.Stop()
	}
	if b.completed != nil {
		b.completed.Stop()
		b.completed = nil
	}
}

// Reset reinitializes the bundle, from snap when it is not nil. Nothing is
// reported to the hooks.
func (b *Bundle) Reset(snap *state.BundleSnapshot) {
	b.Stop()
	if b.timer != nil {
		b.timer.Reset()
	}
	b.state = state.Unstarted
	b.isCompleted = false
	for _, ex := range b.exercises {
		ex.reset()
	}
	if snap == nil {
		return
	}

	switch snap.State {
	case state.Unstarted, state.Opened, state.Completed, state.Cleared:
		b.state = snap.State
	}
	b.isCompleted = snap.IsCompleted
	for _, inst := range snap.Instances {
		ex := b.byID[inst.ID]
		if ex == nil {
			continue
		}
		if inst.Completed {
			ex.setScore(inst.Score, inst.MaxScore)
		}
		ex.content = inst.Content
	}
	if b.timer != nil && snap.RemainingTime != nil {
		b.timer.SetRemaining(time.Duration(*snap.RemainingTime)*time.Millisecond, b.cfg.Grace)
	}
}

// Snapshot returns the persisted form. The remaining time is clamped to
// [0, limit+grace].
func (b *Bundle) Snapshot() state.BundleSnapshot {
	snap := state.BundleSnapshot{
		ID:           b.id,
		SubContentID: b.subContentID,
		State:        b.state,
		IsCompleted:  b.isCompleted,
	}
	if b.timer != nil {
		remaining := b.timer.Remaining()
		if ceiling := b.timer.Limit() + b.cfg.Grace; remaining > ceiling {
			remaining = ceiling
		}
		ms := remaining.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		snap.RemainingTime = &ms
	}
	for _, ex := range b.exercises {
		snap.Instances = append(snap.Instances, state.InstanceSnapshot{
			ID:        ex.id,
			Score:     ex.score,
			MaxScore:  ex.maxScore,
			Completed: ex.completed,
			Content:   ex.content,
		})
	}
	return snap
}
