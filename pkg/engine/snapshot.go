package engine

import (
	"time"

	"github.com/jwebster45206/map-engine/pkg/state"
)

// reset reinitializes the whole map, overlaying snap when it is not nil.
func (e *Engine) reset(snap *state.Snapshot) {
	e.halt()
	e.gameOver = false
	e.reason = ""
	e.sealed = nil
	e.solutions = false
	e.finished = false
	e.finishOffered = false
	e.lastProgress = Progress{}
	e.lastScore = [2]int{-1, -1}

	e.startID = ""
	if snap != nil && e.stages.Get(snap.StartStageID) != nil {
		e.startID = snap.StartStageID
	} else if st := e.stages.Get(e.fixedStart); st != nil && !st.IsSpecial() {
		e.startID = st.ID()
	} else if st := e.stages.PickStart(e.intn); st != nil {
		e.startID = st.ID()
	}

	e.lives = -1
	if n := e.sc.Behaviour.Lives; n > 0 {
		e.lives = n
	}

	e.bundles.Reset(snap)
	e.stages.Reset(e.startID)
	if snap != nil {
		e.stages.Restore(snap.Stages)
		e.stages.Paths().Restore(snap.Paths)
		if snap.LivesLeft != nil && e.lives >= 0 {
			e.lives = max(*snap.LivesLeft, 0)
		}
	}
	e.updateReachability()

	if e.global != nil {
		e.global.Reset()
		if snap != nil && snap.RemainingGlobalTime != nil {
			e.global.SetRemaining(time.Duration(*snap.RemainingGlobalTime)*time.Millisecond, 0)
		}
	}
	e.started = true
	e.logger.Info("Map started", "start_stage", e.startID, "restored", snap != nil)

	if snap != nil {
		e.finished = snap.Finished
		if target := e.sc.Behaviour.FinishScore; target > 0 && e.GetScore() >= target {
			e.finishOffered = true
		}
		if !e.finished && (snap.GameOver || e.lives == 0 || (e.global != nil && e.global.Expired())) {
			e.gameOver = true
			e.reason = ReasonLives
			if e.lives != 0 {
				e.reason = ReasonTime
			}
			e.sealed = e.stages.Seal()
		}
	}

	e.notifyLives()
	e.refreshCounts()
	if e.global != nil && !e.gameOver && !e.finished {
		e.global.Start()
	}
}

// CurrentState returns a snapshot that Restore, or WithSnapshot on a new
// engine for the same scenario, turns back into this state. After game
// over the stages are stored with their states from before sealing.
func (e *Engine) CurrentState() *state.Snapshot {
	snap := &state.Snapshot{
		Stages:          e.stages.Snapshot(),
		Paths:           e.stages.Paths().Snapshot(),
		ExerciseBundles: e.bundles.Snapshot(),
		StartStageID:    e.startID,
		GameOver:        e.gameOver,
		Finished:        e.finished,
	}
	if e.gameOver && !e.solutions {
		for i := range snap.Stages {
			if s, ok := e.sealed[snap.Stages[i].ID]; ok {
				snap.Stages[i].State = s
			}
		}
	}
	if e.lives >= 0 {
		lives := e.lives
		snap.LivesLeft = &lives
	}
	if e.global != nil {
		ms := e.global.Remaining().Milliseconds()
		snap.RemainingGlobalTime = &ms
	}
	return snap
}
