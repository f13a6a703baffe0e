package engine

import (
	"time"

	"github.com/jwebster45206/map-engine/pkg/stage"
	"github.com/jwebster45206/map-engine/pkg/state"
)

// Message keys passed with OnAccessRestrictionsHit. Turning them into text
// is up to the host.
const (
	MessageLocked     = "locked"
	MessageRestricted = "restricted"
)

// GameOverReason says why a session ended early.
type GameOverReason string

const (
	ReasonLives GameOverReason = "lives"
	ReasonTime  GameOverReason = "time"
)

// AccessDenied describes a click on a stage that cannot be opened.
type AccessDenied struct {
	StageID    string
	MessageKey string
	Failed     []string // restriction types that did not pass
}

// PathChange is the new look of a path.
type PathChange struct {
	From    string
	To      string
	State   state.State
	Visible bool
}

// Progress is the aggregate the status display shows. Only reachable
// stages count.
type Progress struct {
	ClearedStages int
	TotalStages   int
	Score         int
	MaxScore      int
}

// Listener receives everything the engine wants the outside world to
// know. Stage, path and completion events are held back while an exercise
// is open and replayed in order once it closes.
type Listener interface {
	OnStageStateChanged(stageID string, from, to state.State)
	OnStageVisibilityChanged(stageID string, visible bool)
	OnPathChanged(change PathChange)
	OnAccessRestrictionsHit(denied AccessDenied)

	OnExerciseOpened(stageID string, solutions bool)
	OnExerciseClosed(stageID string)
	OnExerciseCompleted(stageID string, score, maxScore int)

	// stageID is empty for the global timer.
	OnTimerTick(stageID string, remaining time.Duration)
	OnTimeoutWarning(stageID string, remaining time.Duration)
	OnTimeout(stageID string)

	OnLivesChanged(lives int, unlimited bool)
	OnScoreChanged(score, maxScore int)
	OnProgress(p Progress)

	OnSpecialStage(stageID string, special stage.Special)
	OnOpenLink(stageID, url string)

	OnFinishAvailable(score, maxScore int)
	OnFinished(score, maxScore int)
	OnGameOver(reason GameOverReason)
}

// NoopListener ignores every event. Embed it to implement only the
// methods you need.
type NoopListener struct{}

var _ Listener = NoopListener{}

func (NoopListener) OnStageStateChanged(string, state.State, state.State) {}
func (NoopListener) OnStageVisibilityChanged(string, bool)                {}
func (NoopListener) OnPathChanged(PathChange)                             {}
func (NoopListener) OnAccessRestrictionsHit(AccessDenied)                 {}
func (NoopListener) OnExerciseOpened(string, bool)                        {}
func (NoopListener) OnExerciseClosed(string)                              {}
func (NoopListener) OnExerciseCompleted(string, int, int)                 {}
func (NoopListener) OnTimerTick(string, time.Duration)                    {}
func (NoopListener) OnTimeoutWarning(string, time.Duration)               {}
func (NoopListener) OnTimeout(string)                                     {}
func (NoopListener) OnLivesChanged(int, bool)                             {}
func (NoopListener) OnScoreChanged(int, int)                              {}
func (NoopListener) OnProgress(Progress)                                  {}
func (NoopListener) OnSpecialStage(string, stage.Special)                 {}
func (NoopListener) OnOpenLink(string, string)                            {}
func (NoopListener) OnFinishAvailable(int, int)                           {}
func (NoopListener) OnFinished(int, int)                                  {}
func (NoopListener) OnGameOver(GameOverReason)                            {}
