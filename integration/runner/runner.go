package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/map-engine/internal/services/events"
	"github.com/jwebster45206/map-engine/internal/session"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner plays case files against a running map-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
	ScenarioOverride  string // if set, replaces the scenario of every suite
	KeepSessions      bool   // leave sessions in storage after the run
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	for i, step := range suite.Steps {
		if err := validateStep(step); err != nil {
			return TestSuite{}, fmt.Errorf("%s step %d: %w", filename, i+1, err)
		}
	}
	return suite, nil
}

func validateStep(step TestStep) error {
	switch step.Action {
	case ActionClick:
		if step.StageID == "" {
			return fmt.Errorf("click needs stage_id")
		}
	case ActionScore:
		if step.StageID == "" || step.ExerciseID == "" {
			return fmt.Errorf("score needs stage_id and exercise_id")
		}
	case ActionWait:
		if step.Expectations.empty() {
			return fmt.Errorf("wait needs at least one expectation")
		}
	case ActionClose, ActionContinue, ActionReset, ActionSolutions, ActionFinish:
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

// LoadTestSuiteWithExpansion loads a suite and expands sequences into their cases,
// resolving case paths relative to casesDir.
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// RunSuite creates a session for the suite's scenario and plays every step
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:     TestJob{Name: suite.Name, Suite: suite},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	scenario := suite.Scenario
	if r.ScenarioOverride != "" {
		scenario = r.ScenarioOverride
	}
	view, err := CreateSession(ctx, r.Client, r.BaseURL, scenario)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	id, err := uuid.Parse(view.ID)
	if err != nil {
		result.Error = fmt.Errorf("session id %q: %w", view.ID, err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.SessionID = id
	if !r.KeepSessions {
		defer func() {
			if err := DeleteSession(context.WithoutCancel(ctx), r.Client, r.BaseURL, id); err != nil {
				r.Logger("    cleanup: %v", err)
			}
		}()
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), stepName(step))
		stepResult := r.runStep(ctx, id, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), stepResult.StepName, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i+1, stepResult.StepName, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), stepResult.StepName, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func stepName(step TestStep) string {
	if step.Name != "" {
		return step.Name
	}
	return strings.TrimSpace(strings.Join([]string{step.Action, step.StageID, step.ExerciseID}, " "))
}

func (r *Runner) runStep(ctx context.Context, id uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: stepName(step)}

	if step.Action == ActionWait {
		polls, err := PollForExpectations(ctx, r.Client, r.BaseURL, id, func(v *session.View) error {
			return CheckExpectations(step.Expectations, v)
		})
		result.Polls = polls
		result.Error = err
	} else {
		view, err := PostAction(ctx, r.Client, r.BaseURL, id, step)
		if err == nil {
			err = CheckExpectations(step.Expectations, view)
		}
		result.Error = err
	}

	result.Success = result.Error == nil
	result.Duration = time.Since(start)
	return result
}

// CheckExpectations compares a session view against the step's expectations
func CheckExpectations(exp Expectations, view *session.View) error {
	for id, want := range exp.Stages {
		idx := slices.IndexFunc(view.Stages, func(s session.StageView) bool { return s.ID == id })
		if idx < 0 {
			return fmt.Errorf("expected stage %s to exist", id)
		}
		if got := view.Stages[idx].State; got != want {
			return fmt.Errorf("expected stage %s to be %s, got %s", id, want, got)
		}
	}

	for key, want := range exp.Paths {
		from, to, ok := strings.Cut(key, "-")
		if !ok {
			return fmt.Errorf("path key %q must be from-to", key)
		}
		idx := slices.IndexFunc(view.Paths, func(p session.PathView) bool {
			return (p.From == from && p.To == to) || (p.From == to && p.To == from)
		})
		if idx < 0 {
			return fmt.Errorf("expected path %s to exist", key)
		}
		if got := view.Paths[idx].State; got != want {
			return fmt.Errorf("expected path %s to be %s, got %s", key, want, got)
		}
	}

	if exp.OpenStage != nil && view.OpenStage != *exp.OpenStage {
		return fmt.Errorf("expected open stage %q, got %q", *exp.OpenStage, view.OpenStage)
	}
	if exp.CanContinue != nil && view.CanContinue != *exp.CanContinue {
		return fmt.Errorf("expected can_continue to be %t, got %t", *exp.CanContinue, view.CanContinue)
	}
	if exp.Lives != nil {
		if view.Lives == nil {
			return fmt.Errorf("expected %d lives, session has unlimited lives", *exp.Lives)
		}
		if *view.Lives != *exp.Lives {
			return fmt.Errorf("expected %d lives, got %d", *exp.Lives, *view.Lives)
		}
	}
	if exp.Score != nil && view.Score != *exp.Score {
		return fmt.Errorf("expected score %d, got %d", *exp.Score, view.Score)
	}
	if exp.ClearedStages != nil && view.ClearedStages != *exp.ClearedStages {
		return fmt.Errorf("expected %d cleared stages, got %d", *exp.ClearedStages, view.ClearedStages)
	}
	if exp.GameOver != nil && view.GameOver != *exp.GameOver {
		return fmt.Errorf("expected game_over to be %t, got %t", *exp.GameOver, view.GameOver)
	}
	if exp.GameOverReason != nil && view.GameOverReason != *exp.GameOverReason {
		return fmt.Errorf("expected game over reason %q, got %q", *exp.GameOverReason, view.GameOverReason)
	}
	if exp.ShowingSolutions != nil && view.ShowingSolutions != *exp.ShowingSolutions {
		return fmt.Errorf("expected showing_solutions to be %t, got %t", *exp.ShowingSolutions, view.ShowingSolutions)
	}
	if exp.Finished != nil && view.Finished != *exp.Finished {
		return fmt.Errorf("expected finished to be %t, got %t", *exp.Finished, view.Finished)
	}

	for _, want := range exp.Events {
		if !slices.ContainsFunc(view.Events, func(e events.Event) bool { return string(e.Type) == want }) {
			return fmt.Errorf("expected event %s in response", want)
		}
	}
	return nil
}
