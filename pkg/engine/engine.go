// Package engine is the map controller. It wires stages, paths, exercise
// bundles, timers and the callback queue together and owns lives, score,
// game over and finish.
//
// An Engine is single-threaded: every method and every scheduled callback
// must run on the goroutine that owns its loop.Scheduler.
package engine

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jwebster45206/map-engine/pkg/callbackqueue"
	"github.com/jwebster45206/map-engine/pkg/exercise"
	"github.com/jwebster45206/map-engine/pkg/loop"
	"github.com/jwebster45206/map-engine/pkg/path"
	"github.com/jwebster45206/map-engine/pkg/restriction"
	"github.com/jwebster45206/map-engine/pkg/scenario"
	"github.com/jwebster45206/map-engine/pkg/stage"
	"github.com/jwebster45206/map-engine/pkg/state"
	"github.com/jwebster45206/map-engine/pkg/timer"
)

var (
	ErrNoScenario  = errors.New("engine: scenario is required")
	ErrNoStages    = errors.New("engine: scenario has no stages")
	ErrNoScheduler = errors.New("engine: scheduler is required")
)

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the clock and timer source. Required.
func WithScheduler(s loop.Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

func WithListener(l Listener) Option {
	return func(e *Engine) {
		if l != nil {
			e.listener = l
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStartPicker replaces the random choice of the start stage. intn
// must return a value in [0, n).
func WithStartPicker(intn func(n int) int) Option {
	return func(e *Engine) {
		if intn != nil {
			e.intn = intn
		}
	}
}

// WithStartStage fixes the start stage of fresh runs. Unknown and
// special stages fall back to the picker.
func WithStartStage(id string) Option {
	return func(e *Engine) { e.fixedStart = id }
}

// WithSnapshot makes Start resume from a stored state instead of a fresh
// map.
func WithSnapshot(s *state.Snapshot) Option {
	return func(e *Engine) { e.initial = s }
}

// WithRestrictionRegistry supplies custom restriction types.
func WithRestrictionRegistry(r *restriction.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// Engine runs one map session.
type Engine struct {
	sc         *scenario.Scenario
	scheduler  loop.Scheduler
	listener   Listener
	logger     *slog.Logger
	intn       func(n int) int
	fixedStart string
	initial    *state.Snapshot
	registry   *restriction.Registry

	anim    time.Duration
	queue   *callbackqueue.Queue
	stages  *stage.Stages
	bundles *exercise.Bundles
	global  *timer.Timer

	started   bool
	startID   string
	reachable map[string]bool
	lives     int  // -1 when unlimited

	openStage string
	closing   loop.Handle

	gameOver      bool
	reason        GameOverReason
	sealed        map[string]state.State
	solutions     bool
	finished      bool
	finishOffered bool

	lastProgress Progress
	lastScore    [2]int
}

var _ restriction.Values = (*Engine)(nil)
var _ restriction.StageScoreLister = (*Engine)(nil)

// New builds an engine for sc. Call Start to initialize the map.
func New(sc *scenario.Scenario, opts ...Option) (*Engine, error) {
	if sc == nil {
		return nil, ErrNoScenario
	}
	if len(sc.Stages) == 0 {
		return nil, ErrNoStages
	}
	e := &Engine{
		sc:       sc,
		listener: NoopListener{},
		logger:   slog.Default(),
		intn:     rand.IntN,
		lives:    -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scheduler == nil {
		return nil, ErrNoScheduler
	}
	e.logger = e.logger.With("scenario", sc.Name)
	e.anim = sc.AnimationDuration()
	e.queue = callbackqueue.New(e.scheduler, sc.Visual.UsesAnimation())

	roaming := sc.Roaming()
	e.bundles = exercise.NewBundles(sc.BundleDefinitions(), exercise.Config{
		Roaming:   roaming,
		Scheduler: e.scheduler,
		Grace:     e.anim,
	}, exercise.Hooks{
		StateChanged: e.bundleStateChanged,
		Completed:    e.bundleCompleted,
		Tick: func(b *exercise.Bundle, remaining time.Duration) {
			e.listener.OnTimerTick(b.ID(), remaining)
		},
		Warning: func(b *exercise.Bundle, remaining time.Duration) {
			e.listener.OnTimeoutWarning(b.ID(), remaining)
		},
		Timeout: e.bundleTimeout,
	})
	e.stages = stage.New(sc.StageDefinitions(), stage.Config{
		Roaming:     roaming,
		Fog:         sc.Fog(),
		Queue:       e.queue,
		UnlockDelay: e.anim,
		Values:      e,
		Registry:    e.registry,
	}, stage.Hooks{
		StateChanged:      e.stageStateChanged,
		VisibilityChanged: e.stageVisibilityChanged,
		PathChanged:       e.pathChanged,
		Settled:           func(*stage.Stage) { e.afterChange() },
	})

	if limit := sc.Behaviour.TimeLimitGlobal; limit > 0 {
		e.global = timer.New(e.scheduler, time.Duration(limit)*time.Second, timer.Options{
			Interval:  time.Second,
			WarningAt: time.Duration(sc.Behaviour.TimeLimitWarning) * time.Second,
			OnTick: func(remaining time.Duration) {
				e.queue.Add(func() { e.listener.OnTimerTick("", remaining) }, callbackqueue.Options{SkipQueue: true})
			},
			OnWarning: func(remaining time.Duration) {
				e.listener.OnTimeoutWarning("", remaining)
			},
			OnExpired: func() {
				e.listener.OnTimeout("")
				e.endGame(ReasonTime)
			},
		})
	}
	return e, nil
}

// notify delivers fn now, or after the open exercise closes.
func (e *Engine) notify(fn func()) {
	e.queue.Add(fn, callbackqueue.Options{Delay: e.anim})
}

// notifyNow delivers fn even while an exercise is open.
func (e *Engine) notifyNow(fn func()) {
	e.queue.Add(fn, callbackqueue.Options{SkipQueue: true})
}

func (e *Engine) stageStateChanged(st *stage.Stage, prev state.State) {
	id, next := st.ID(), st.State()
	e.logger.Debug("Stage state changed", "stage", id, "from", prev.String(), "to", next.String())
	e.notify(func() { e.listener.OnStageStateChanged(id, prev, next) })
}

func (e *Engine) stageVisibilityChanged(st *stage.Stage) {
	id, visible := st.ID(), st.Visible()
	e.notify(func() { e.listener.OnStageVisibilityChanged(id, visible) })
}

func (e *Engine) pathChanged(p *path.Path) {
	change := PathChange{From: p.From(), To: p.To(), State: p.State(), Visible: p.Visible()}
	e.notify(func() { e.listener.OnPathChanged(change) })
}

func (e *Engine) bundleStateChanged(b *exercise.Bundle, _ state.State) {
	st := e.stages.Get(b.ID())
	if st == nil {
		return
	}
	switch b.State() {
	case state.Cleared:
		st.SetState(state.Cleared, false)
	case state.Completed:
		st.SetState(state.Completed, false)
	}
}

func (e *Engine) bundleCompleted(b *exercise.Bundle) {
	id, score, maxScore := b.ID(), b.Score(), b.MaxScore()
	e.notify(func() { e.listener.OnExerciseCompleted(id, score, maxScore) })
}

func (e *Engine) bundleTimeout(b *exercise.Bundle) {
	e.logger.Debug("Exercise timed out", "stage", b.ID())
	e.listener.OnTimeout(b.ID())
	e.loseLife()
	if !e.gameOver && e.openStage == b.ID() {
		e.CloseExercise()
	}
}

// afterChange runs once neighbors and fog have settled after a state
// change.
func (e *Engine) afterChange() {
	e.updateReachability()
	e.refreshCounts()
}

func (e *Engine) updateReachability() {
	e.reachable = e.stages.UpdateReachability(e.startID)
	e.bundles.SetReachable(e.reachable)
}

func (e *Engine) refreshCounts() {
	p := e.Progress()
	if p != e.lastProgress {
		e.lastProgress = p
		e.notify(func() { e.listener.OnProgress(p) })
	}
	if score := [2]int{p.Score, p.MaxScore}; score != e.lastScore {
		e.lastScore = score
		e.notifyNow(func() { e.listener.OnScoreChanged(score[0], score[1]) })
	}
	if target := e.sc.Behaviour.FinishScore; target > 0 && !e.finishOffered && p.Score >= target {
		e.finishOffered = true
		e.notify(func() { e.listener.OnFinishAvailable(p.Score, p.MaxScore) })
	}
}

// Values seen by access restrictions.

func (e *Engine) TotalScore() int { return e.bundles.Score() }
func (e *Engine) MaxScore() int   { return e.bundles.MaxScore() }
func (e *Engine) Now() time.Time  { return e.scheduler.Now() }

func (e *Engine) StageScore(id string) (int, bool) {
	b := e.bundles.Get(id)
	if b == nil {
		return 0, false
	}
	return b.Score(), true
}

func (e *Engine) StageScores() map[string]int {
	out := make(map[string]int, len(e.bundles.All()))
	for _, b := range e.bundles.All() {
		out[b.ID()] = b.Score()
	}
	return out
}

// Accessors.

func (e *Engine) Scenario() *scenario.Scenario { return e.sc }
func (e *Engine) StartStageID() string         { return e.startID }
func (e *Engine) OpenStage() string            { return e.openStage }
func (e *Engine) IsGameOver() bool             { return e.gameOver }
func (e *Engine) GameOverReason() GameOverReason {
	return e.reason
}
func (e *Engine) ShowingSolutions() bool            { return e.solutions }
func (e *Engine) IsFinished() bool                  { return e.finished }
func (e *Engine) Stages() []*stage.Stage            { return e.stages.All() }
func (e *Engine) Stage(id string) *stage.Stage      { return e.stages.Get(id) }
func (e *Engine) Paths() []*path.Path               { return e.stages.Paths().All() }
func (e *Engine) Path(a, b string) *path.Path       { return e.stages.Paths().Get(a, b) }
func (e *Engine) Bundle(id string) *exercise.Bundle { return e.bundles.Get(id) }
func (e *Engine) ComputeReachableSet(seeds ...string) map[string]bool {
	return e.stages.ComputeReachableSet(seeds...)
}

// Lives returns the lives left. unlimited is true when the map does not
// count lives.
func (e *Engine) Lives() (lives int, unlimited bool) {
	if e.lives < 0 {
		return 0, true
	}
	return e.lives, false
}

// GetScore is the summed score of every reachable bundle.
func (e *Engine) GetScore() int { return e.bundles.Score() }

// GetMaxScore is the summed maximum of every reachable bundle.
func (e *Engine) GetMaxScore() int { return e.bundles.MaxScore() }

// GetAnswerGiven reports whether any reachable task was answered.
func (e *Engine) GetAnswerGiven() bool { return e.bundles.AnswerGiven() }

// RemainingGlobalTime is the time left on the session clock. ok is false
// when the map has no global time limit.
func (e *Engine) RemainingGlobalTime() (remaining time.Duration, ok bool) {
	if e.global == nil {
		return 0, false
	}
	return e.global.Remaining(), true
}

// Progress counts cleared ordinary stages among the reachable ones.
func (e *Engine) Progress() Progress {
	p := Progress{Score: e.bundles.Score(), MaxScore: e.bundles.MaxScore()}
	for _, st := range e.stages.All() {
		if st.IsSpecial() || !e.reachable[st.ID()] {
			continue
		}
		p.TotalStages++
		if st.State() == state.Cleared {
			p.ClearedStages++
		}
	}
	return p
}

// CanContinue reports whether the open exercise may be left.
func (e *Engine) CanContinue() bool {
	if e.openStage == "" {
		return false
	}
	if e.solutions {
		return true
	}
	b := e.bundles.Get(e.openStage)
	return b != nil && b.CanContinue()
}
