// Package exercise tracks the learning content attached to a stage: the
// individual exercises, their scores and the bundle that groups them.
package exercise

import "encoding/json"

// Definition describes one exercise of a bundle.
type Definition struct {
	ID       string
	Type     string
	IsTask   bool
	MaxScore int
}

// Exercise is one scored piece of content.
type Exercise struct {
	id     string
	typ    string
	isTask bool

	defaultMax int
	score      int
	maxScore   int
	completed  bool
	content    json.RawMessage
}

func newExercise(d Definition) *Exercise {
	maxScore := d.MaxScore
	if maxScore < 0 || !d.IsTask {
		maxScore = 0
	}
	return &Exercise{id: d.ID, typ: d.Type, isTask: d.IsTask, defaultMax: maxScore, maxScore: maxScore}
}

func (e *Exercise) ID() string               { return e.id }
func (e *Exercise) Type() string             { return e.typ }
func (e *Exercise) IsTask() bool             { return e.isTask }
func (e *Exercise) Score() int               { return e.score }
func (e *Exercise) MaxScore() int            { return e.maxScore }
func (e *Exercise) Completed() bool          { return e.completed }
func (e *Exercise) Content() json.RawMessage { return e.content }

// Finished reports whether the exercise no longer needs an answer. Content
// that is not a task is always finished.
func (e *Exercise) Finished() bool {
	return !e.isTask || e.completed
}

// Successful reports a finished task with full marks.
func (e *Exercise) Successful() bool {
	return !e.isTask || (e.completed && e.score >= e.maxScore)
}

// setScore records an answer. A non-positive max keeps the authored
// maximum; the score is clamped to [0, max].
func (e *Exercise) setScore(score, maxScore int) {
	if maxScore <= 0 {
		maxScore = e.defaultMax
	}
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}
	e.score = score
	e.maxScore = maxScore
	e.completed = true
}

func (e *Exercise) reset() {
	e.score = 0
	e.maxScore = e.defaultMax
	e.completed = false
	e.content = nil
}
