package engine

import (
	"encoding/json"

	"github.com/jwebster45206/map-engine/pkg/stage"
	"github.com/jwebster45206/map-engine/pkg/state"
)

// Start initializes the map, from the WithSnapshot state when one was
// given. Calling Start again is a no-op; use Reset to play again.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.reset(e.initial)
}

// Reset starts a fresh run with a new start stage.
func (e *Engine) Reset() {
	e.reset(nil)
}

// Restore replaces the current run with a stored one.
func (e *Engine) Restore(snap *state.Snapshot) {
	if snap == nil {
		return
	}
	e.reset(snap)
}

// Destroy stops every timer and drops pending callbacks.
func (e *Engine) Destroy() {
	e.halt()
	e.started = false
}

func (e *Engine) halt() {
	if e.closing != nil {
		e.closing.Stop()
		e.closing = nil
	}
	e.bundles.Stop()
	if e.global != nil {
		e.global.Stop()
	}
	e.queue.ClearQueued()
	e.queue.ClearScheduled()
	e.queue.SetSkippable(true)
	e.openStage = ""
}

// Click handles a click on a stage. Locked stages and stages whose access
// restrictions fail report through OnAccessRestrictionsHit. Clicks are
// ignored while an exercise is open and after the session has ended.
func (e *Engine) Click(stageID string) {
	if !e.started || e.finished || e.openStage != "" {
		return
	}
	st := e.stages.Get(stageID)
	if st == nil {
		return
	}
	if e.gameOver {
		if e.solutions && !st.IsSpecial() && st.State().IsPlayable() {
			e.openExercise(st)
		}
		return
	}

	switch s := st.State(); {
	case s == state.Locked || s == state.Unlocking:
		e.notify(func() {
			e.listener.OnAccessRestrictionsHit(AccessDenied{StageID: stageID, MessageKey: MessageLocked})
		})
		return
	case !s.IsPlayable():
		return
	}

	if ok, failed := st.CheckAccess(); !ok {
		e.logger.Debug("Access restricted", "stage", stageID, "failed", failed)
		e.notify(func() {
			e.listener.OnAccessRestrictionsHit(AccessDenied{StageID: stageID, MessageKey: MessageRestricted, Failed: failed})
		})
		return
	}

	if st.IsSpecial() {
		e.runSpecial(st)
		return
	}
	e.openExercise(st)
}

func (e *Engine) openExercise(st *stage.Stage) {
	b := e.bundles.Get(st.ID())
	if b == nil {
		return
	}
	e.flushClosing()
	if !e.solutions && st.State() == state.Open {
		st.SetState(state.Opened, false)
	}
	e.openStage = st.ID()
	e.queue.SetSkippable(false)
	e.listener.OnExerciseOpened(st.ID(), e.solutions)
	if !e.solutions {
		b.Open()
		e.refreshCounts()
	}
}

// CloseExercise hides the open exercise. Held back notifications play
// once the closing animation has run.
func (e *Engine) CloseExercise() {
	if e.openStage == "" {
		return
	}
	id := e.openStage
	e.openStage = ""
	if b := e.bundles.Get(id); b != nil {
		b.Close()
	}
	e.listener.OnExerciseClosed(id)

	if e.closing != nil {
		e.closing.Stop()
	}
	e.closing = e.scheduler.AfterFunc(e.anim, func() {
		e.closing = nil
		e.queue.SetSkippable(true)
		e.queue.ScheduleQueued()
		e.maybeAutoFinish()
	})
}

// flushClosing runs a pending close right away.
func (e *Engine) flushClosing() {
	if e.closing == nil {
		return
	}
	e.closing.Stop()
	e.closing = nil
	e.queue.SetSkippable(true)
	e.queue.ScheduleQueued()
}

// ContinueExercise closes the open exercise if the roaming policy allows
// leaving it.
func (e *Engine) ContinueExercise() {
	if !e.CanContinue() {
		return
	}
	e.CloseExercise()
}

// HandleScored records a result from the open exercise. A task answered
// below its maximum costs a life.
func (e *Engine) HandleScored(stageID, exerciseID string, score, maxScore int) {
	if !e.started || e.gameOver || e.finished || stageID == "" || stageID != e.openStage {
		return
	}
	b := e.bundles.Get(stageID)
	if b == nil {
		return
	}
	if b.HandleScored(exerciseID, score, maxScore) {
		e.loseLife()
	}
	if !e.gameOver {
		e.refreshCounts()
	}
}

// SetExerciseContent stores opaque host state for an exercise so it is
// part of the snapshot.
func (e *Engine) SetExerciseContent(stageID, exerciseID string, content json.RawMessage) {
	if b := e.bundles.Get(stageID); b != nil {
		b.SetContent(exerciseID, content)
	}
}

var specialFeatures = map[stage.Special]func(e *Engine, st *stage.Stage){
	stage.SpecialExtraLife: (*Engine).extraLife,
	stage.SpecialExtraTime: (*Engine).extraTime,
	stage.SpecialLink:      (*Engine).openLink,
	stage.SpecialFinish:    func(e *Engine, _ *stage.Stage) { e.Finish() },
}

// runSpecial runs a special stage once and clears it.
func (e *Engine) runSpecial(st *stage.Stage) {
	if st.State() == state.Cleared {
		return
	}
	id, special := st.ID(), st.Special()
	e.logger.Debug("Special stage", "stage", id, "special", string(special))
	st.SetState(state.Cleared, false)
	e.notify(func() { e.listener.OnSpecialStage(id, special) })
	if feature, ok := specialFeatures[special]; ok {
		feature(e, st)
	}
	e.maybeAutoFinish()
}

func (e *Engine) extraLife(st *stage.Stage) {
	if e.lives < 0 || st.ExtraLives() <= 0 {
		return
	}
	e.lives += st.ExtraLives()
	e.notifyLives()
}

func (e *Engine) extraTime(st *stage.Stage) {
	if e.global == nil {
		return
	}
	e.global.Add(st.ExtraTime())
}

func (e *Engine) openLink(st *stage.Stage) {
	id, url := st.ID(), st.URL()
	if url == "" {
		return
	}
	e.notify(func() { e.listener.OnOpenLink(id, url) })
}

func (e *Engine) notifyLives() {
	lives, unlimited := e.Lives()
	e.notifyNow(func() { e.listener.OnLivesChanged(lives, unlimited) })
}

func (e *Engine) loseLife() {
	if e.lives <= 0 || e.gameOver {
		return
	}
	e.lives--
	e.notifyLives()
	if e.lives == 0 {
		e.endGame(ReasonLives)
	}
}

// endGame seals every stage. The states before sealing are kept for
// ShowSolutions.
func (e *Engine) endGame(reason GameOverReason) {
	if e.gameOver || e.finished {
		return
	}
	if id := e.openStage; id != "" {
		e.bundles.Get(id).Close()
		e.listener.OnExerciseClosed(id)
	}
	e.halt()
	e.gameOver = true
	e.reason = reason
	e.sealed = e.stages.Seal()
	e.logger.Info("Game over", "reason", string(reason), "score", e.GetScore(), "max_score", e.GetMaxScore())
	e.listener.OnGameOver(reason)
}

// ShowSolutions puts back the stage states from before game over so the
// learner can review the exercises.
func (e *Engine) ShowSolutions() {
	if !e.gameOver || e.solutions {
		return
	}
	e.solutions = true
	e.stages.Unseal(e.sealed)
}

// Finish ends the session. Timers stop and the final score is reported
// after any held back notifications.
func (e *Engine) Finish() {
	if !e.started || e.finished {
		return
	}
	if id := e.openStage; id != "" {
		e.openStage = ""
		e.bundles.Get(id).Close()
		e.listener.OnExerciseClosed(id)
	}
	e.bundles.Stop()
	if e.global != nil {
		e.global.Stop()
	}
	e.finished = true
	score, maxScore := e.GetScore(), e.GetMaxScore()
	e.logger.Info("Map finished", "score", score, "max_score", maxScore)
	e.notify(func() { e.listener.OnFinished(score, maxScore) })
	if e.closing != nil {
		e.closing.Stop()
		e.closing = nil
	}
	e.queue.SetSkippable(true)
	e.queue.ScheduleQueued()
}

// maybeAutoFinish finishes once every reachable ordinary stage is cleared.
func (e *Engine) maybeAutoFinish() {
	if e.gameOver || e.finished || e.openStage != "" {
		return
	}
	p := e.Progress()
	if p.TotalStages > 0 && p.ClearedStages == p.TotalStages {
		e.Finish()
	}
}
