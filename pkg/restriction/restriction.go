// Package restriction evaluates access restrictions on stages: single
// predicates over live values (scores, wall clock), grouped into sets that
// are combined with "all" or "any".
package restriction

import (
	"strconv"
	"time"
)

// Values provides the live comparison values. Restrictions read them
// fresh on every check.
type Values interface {
	TotalScore() int
	MaxScore() int
	StageScore(stageID string) (int, bool)
	Now() time.Time
}

// Restriction is one predicate. Adding a type means implementing this
// interface and registering a Factory for its type name.
type Restriction interface {
	Type() string
	Check() bool
	ValidOperators() []string
}

// Params is the authored form of a single restriction.
type Params struct {
	Type     string `json:"type" yaml:"type"`
	Operator string `json:"operator" yaml:"operator"`
	Value    string `json:"value" yaml:"value"`
	StageID  string `json:"stage_id,omitempty" yaml:"stage_id,omitempty"`
}

// Factory builds a restriction bound to values. It reports false when the
// params do not describe a usable restriction; such restrictions are dropped.
type Factory func(p Params, values Values) (Restriction, bool)

const (
	TypeTotalScore = "total-score"
	TypeStageScore = "stage-score"
	TypeTime       = "time"
	TypeExpression = "expression"
)

// Numeric comparison operators.
const (
	OpLessThan           = "lessThan"
	OpLessThanOrEqual    = "lessThanOrEqual"
	OpEqual              = "equal"
	OpNotEqual           = "notEqual"
	OpGreaterThanOrEqual = "greaterThanOrEqual"
	OpGreaterThan        = "greaterThan"
)

var numericOperators = []string{
	OpLessThan, OpLessThanOrEqual, OpEqual, OpNotEqual, OpGreaterThanOrEqual, OpGreaterThan,
}

func isValidOperator(op string, valid []string) bool {
	for _, v := range valid {
		if v == op {
			return true
		}
	}
	return false
}

func compareInt(a int, op string, b int) bool {
	switch op {
	case OpLessThan:
		return a < b
	case OpLessThanOrEqual:
		return a <= b
	case OpEqual:
		return a == b
	case OpNotEqual:
		return a != b
	case OpGreaterThanOrEqual:
		return a >= b
	case OpGreaterThan:
		return a > b
	}
	return false
}

// TotalScore compares the learner's total score with a fixed value.
type TotalScore struct {
	operator string
	value    int
	values   Values
}

func newTotalScore(p Params, values Values) (Restriction, bool) {
	if !isValidOperator(p.Operator, numericOperators) {
		return nil, false
	}
	n, err := strconv.Atoi(p.Value)
	if err != nil {
		return nil, false
	}
	return &TotalScore{operator: p.Operator, value: n, values: values}, true
}

func (r *TotalScore) Type() string             { return TypeTotalScore }
func (r *TotalScore) ValidOperators() []string { return numericOperators }

func (r *TotalScore) Check() bool {
	return compareInt(r.values.TotalScore(), r.operator, r.value)
}

// StageScore compares the score reached on another stage with a fixed value.
type StageScore struct {
	stageID  string
	operator string
	value    int
	values   Values
}

func newStageScore(p Params, values Values) (Restriction, bool) {
	if p.StageID == "" || !isValidOperator(p.Operator, numericOperators) {
		return nil, false
	}
	n, err := strconv.Atoi(p.Value)
	if err != nil {
		return nil, false
	}
	if _, ok := values.StageScore(p.StageID); !ok {
		return nil, false
	}
	return &StageScore{stageID: p.StageID, operator: p.Operator, value: n, values: values}, true
}

func (r *StageScore) Type() string             { return TypeStageScore }
func (r *StageScore) ValidOperators() []string { return numericOperators }

func (r *StageScore) Check() bool {
	score, ok := r.values.StageScore(r.stageID)
	if !ok {
		return true
	}
	return compareInt(score, r.operator, r.value)
}

// Time operators.
const (
	OpBefore = "before"
	OpAfter  = "after"
)

var timeOperators = []string{OpBefore, OpAfter}

// Time compares the wall clock with either an absolute RFC 3339 instant
// or a daily time of day ("15:04").
type Time struct {
	operator  string
	at        time.Time
	timeOfDay bool
	values    Values
}

func newTime(p Params, values Values) (Restriction, bool) {
	if !isValidOperator(p.Operator, timeOperators) {
		return nil, false
	}
	if at, err := time.Parse(time.RFC3339, p.Value); err == nil {
		return &Time{operator: p.Operator, at: at, values: values}, true
	}
	if at, err := time.Parse("15:04", p.Value); err == nil {
		return &Time{operator: p.Operator, at: at, timeOfDay: true, values: values}, true
	}
	return nil, false
}

func (r *Time) Type() string             { return TypeTime }
func (r *Time) ValidOperators() []string { return timeOperators }

func (r *Time) Check() bool {
	now := r.values.Now()
	at := r.at
	if r.timeOfDay {
		at = time.Date(now.Year(), now.Month(), now.Day(), r.at.Hour(), r.at.Minute(), 0, 0, now.Location())
	}
	if r.operator == OpBefore {
		return now.Before(at)
	}
	return !now.Before(at)
}
