package runner

import (
	"time"

	"github.com/google/uuid"
)

// Step actions understood by the runner. Anything else is rejected at load time.
const (
	ActionClick     = "click"
	ActionScore     = "score"
	ActionClose     = "close"
	ActionContinue  = "continue"
	ActionReset     = "reset"
	ActionSolutions = "solutions"
	ActionFinish    = "finish"
	ActionWait      = "wait" // poll the session view until the expectations hold
)

// TestSuite is either a playthrough with Steps or a sequence of other case files.
type TestSuite struct {
	Name     string     `json:"name"`
	Scenario string     `json:"scenario,omitempty"`
	Steps    []TestStep `json:"steps,omitempty"`
	Cases    []string   `json:"cases,omitempty"`
}

// IsSequence returns true if this suite only references other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one request against the session API plus what the returned view must show.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Action       string       `json:"action"`
	StageID      string       `json:"stage_id,omitempty"`
	ExerciseID   string       `json:"exercise_id,omitempty"`
	Score        int          `json:"score,omitempty"`
	MaxScore     int          `json:"max_score,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations are checked against the session view returned by a step.
type Expectations struct {
	Stages           map[string]string `json:"stages,omitempty"` // stage id -> state name
	Paths            map[string]string `json:"paths,omitempty"`  // "from-to" -> state name
	OpenStage        *string           `json:"open_stage,omitempty"`
	CanContinue      *bool             `json:"can_continue,omitempty"`
	Lives            *int              `json:"lives,omitempty"`
	Score            *int              `json:"score,omitempty"`
	ClearedStages    *int              `json:"cleared_stages,omitempty"`
	GameOver         *bool             `json:"game_over,omitempty"`
	GameOverReason   *string           `json:"game_over_reason,omitempty"`
	ShowingSolutions *bool             `json:"showing_solutions,omitempty"`
	Finished         *bool             `json:"finished,omitempty"`
	Events           []string          `json:"events,omitempty"` // event types that must appear in the view
}

func (e Expectations) empty() bool {
	return len(e.Stages) == 0 && len(e.Paths) == 0 && len(e.Events) == 0 &&
		e.OpenStage == nil && e.CanContinue == nil && e.Lives == nil && e.Score == nil &&
		e.ClearedStages == nil && e.GameOver == nil && e.GameOverReason == nil &&
		e.ShowingSolutions == nil && e.Finished == nil
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	Polls    int
}

// TestJob is a suite loaded from a case file
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	SessionID uuid.UUID
	Results   []TestResult
	Duration  time.Duration
	Error     error
}
