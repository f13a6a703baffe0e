package scenario

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jwebster45206/map-engine/pkg/restriction"
	"github.com/jwebster45206/map-engine/pkg/stage"
	"github.com/jwebster45206/map-engine/pkg/state"
)

// ValidationError lists every problem found in a scenario.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid scenario:\n  - " + strings.Join(e.Issues, "\n  - ")
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*[a-z0-9]$|^[a-z]$`)

// Validate checks structure and references. Problems the engine can cope
// with at runtime, such as an invalid restriction, are still reported so
// authors can fix them.
func (s *Scenario) Validate() error {
	v := &validator{}
	if strings.TrimSpace(s.Name) == "" {
		v.add("scenario name is required")
	}
	if len(s.Stages) == 0 {
		v.add("scenario has no stages")
	}

	ids := make(map[string]bool, len(s.Stages))
	for _, st := range s.Stages {
		switch {
		case st.ID == "":
			v.add("stage without id")
		case ids[st.ID]:
			v.add(fmt.Sprintf("duplicate stage id '%s'", st.ID))
		case !validIDRegex.MatchString(st.ID):
			v.add(fmt.Sprintf("stage id '%s' should be lowercase snake_case or kebab-case", st.ID))
		}
		ids[st.ID] = true
	}

	for i := range s.Stages {
		v.stage(&s.Stages[i], ids)
	}
	v.behaviour(&s.Behaviour)

	if len(v.issues) > 0 {
		return &ValidationError{Issues: v.issues}
	}
	return nil
}

type validator struct {
	issues []string
}

func (v *validator) add(msg string) {
	v.issues = append(v.issues, msg)
}

func (v *validator) stage(st *Stage, ids map[string]bool) {
	for _, n := range st.Neighbors {
		if n == st.ID {
			v.add(fmt.Sprintf("stage '%s' lists itself as a neighbor", st.ID))
		} else if !ids[n] {
			v.add(fmt.Sprintf("stage '%s' has unknown neighbor '%s'", st.ID, n))
		}
	}

	switch stage.Kind(st.Type) {
	case "", stage.KindStage:
		if st.SpecialStageType != "" {
			v.add(fmt.Sprintf("stage '%s' sets special_stage_type but is not a special stage", st.ID))
		}
		if st.Content != nil {
			v.content(st.ID, st.Content)
		}
	case stage.KindSpecial:
		v.special(st)
	default:
		v.add(fmt.Sprintf("stage '%s' has unknown type '%s'", st.ID, st.Type))
	}

	v.restrictions(st, ids)
}

func (v *validator) content(id string, c *Content) {
	seen := make(map[string]bool, len(c.Exercises))
	for _, ex := range c.Exercises {
		if ex.ID == "" {
			v.add(fmt.Sprintf("stage '%s' has an exercise without id", id))
			continue
		}
		if seen[ex.ID] {
			v.add(fmt.Sprintf("stage '%s' has duplicate exercise id '%s'", id, ex.ID))
		}
		seen[ex.ID] = true
		if ex.MaxScore < 0 {
			v.add(fmt.Sprintf("exercise '%s' in stage '%s' has negative max_score", ex.ID, id))
		}
	}
	if c.TimeLimit < 0 || c.TimeLimitWarning < 0 {
		v.add(fmt.Sprintf("stage '%s' has a negative time limit", id))
	}
	if c.TimeLimit > 0 && c.TimeLimitWarning >= c.TimeLimit {
		v.add(fmt.Sprintf("stage '%s' warns at or after its time limit", id))
	}
}

func (v *validator) special(st *Stage) {
	if st.Content != nil {
		v.add(fmt.Sprintf("special stage '%s' cannot have content", st.ID))
	}
	sp := st.Special
	if sp == nil {
		sp = &Special{}
	}
	switch stage.Special(st.SpecialStageType) {
	case stage.SpecialExtraLife:
		if sp.ExtraLives <= 0 {
			v.add(fmt.Sprintf("extra-life stage '%s' needs positive extra_lives", st.ID))
		}
	case stage.SpecialExtraTime:
		if sp.ExtraTime <= 0 {
			v.add(fmt.Sprintf("extra-time stage '%s' needs positive extra_time", st.ID))
		}
	case stage.SpecialLink:
		if sp.URL == "" {
			v.add(fmt.Sprintf("link stage '%s' needs a url", st.ID))
		}
	case stage.SpecialFinish:
	default:
		v.add(fmt.Sprintf("special stage '%s' has unknown special_stage_type '%s'", st.ID, st.SpecialStageType))
	}
}

// restrictions builds every restriction against placeholder values to
// find the ones the engine would drop.
func (v *validator) restrictions(st *Stage, ids map[string]bool) {
	if st.AccessRestrictions == nil {
		return
	}
	for _, set := range st.AccessRestrictions.Sets {
		for _, p := range set.Restrictions {
			if p.Type == restriction.TypeStageScore && !ids[p.StageID] {
				v.add(fmt.Sprintf("stage '%s' restricts on unknown stage '%s'", st.ID, p.StageID))
				continue
			}
			if _, ok := restriction.DefaultRegistry.Build(p, placeholderValues{}); !ok {
				v.add(fmt.Sprintf("stage '%s' has an invalid %s restriction (operator '%s', value '%s')", st.ID, p.Type, p.Operator, p.Value))
			}
		}
	}
}

func (v *validator) behaviour(b *Behaviour) {
	switch state.Roaming(b.Map.Roaming) {
	case "", state.RoamingFree, state.RoamingComplete, state.RoamingSuccess:
	default:
		v.add(fmt.Sprintf("unknown roaming '%s'", b.Map.Roaming))
	}
	if b.Map.Fog != "" && b.Map.Fog != string(state.FogAll) {
		if n, err := strconv.Atoi(b.Map.Fog); err != nil || n < 0 {
			v.add(fmt.Sprintf("fog must be 'all' or a hop count, got '%s'", b.Map.Fog))
		}
	}
	if b.Lives < 0 {
		v.add("lives cannot be negative")
	}
	if b.FinishScore < 0 {
		v.add("finish_score cannot be negative")
	}
	if b.TimeLimitGlobal < 0 || b.TimeLimitWarning < 0 {
		v.add("time limits cannot be negative")
	}
}

// placeholderValues satisfies restriction.Values for validation.
type placeholderValues struct{}

func (placeholderValues) TotalScore() int               { return 0 }
func (placeholderValues) MaxScore() int                 { return 0 }
func (placeholderValues) StageScore(string) (int, bool) { return 0, true }
func (placeholderValues) Now() time.Time                { return time.Time{} }

var _ restriction.Values = placeholderValues{}
