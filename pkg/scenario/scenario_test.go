package scenario

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/map-engine/pkg/stage"
	"github.com/jwebster45206/map-engine/pkg/state"
)

const minimalJSON = `{
	"name": "Tiny",
	"stages": [
		{"id": "a", "neighbors": ["b"], "content": {"exercises": [{"id": "q", "max_score": 2}]}},
		{"id": "b", "content": {"time_limit": 30, "time_limit_warning": 5, "exercises": [{"id": "t", "is_task": false}]}},
		{"id": "s", "type": "special-stage", "special_stage_type": "extra-time", "neighbors": ["b"], "special": {"extra_time": 20}}
	],
	"behaviour": {"map": {"roaming": "success", "fog": "2"}, "lives": 2},
	"visual": {"misc": {"animation_duration": 500}}
}`

const minimalYAML = `
name: Tiny
stages:
  - id: a
    neighbors: [b]
    content:
      exercises:
        - id: q
          max_score: 2
  - id: b
    content:
      time_limit: 30
      time_limit_warning: 5
      exercises:
        - id: t
          is_task: false
  - id: s
    type: special-stage
    special_stage_type: extra-time
    neighbors: [b]
    special:
      extra_time: 20
behaviour:
  map:
    roaming: success
    fog: "2"
  lives: 2
visual:
  misc:
    animation_duration: 500
`

func TestDecode_JSONAndYAMLAgree(t *testing.T) {
	fromJSON, err := Decode([]byte(minimalJSON), FormatJSON, true)
	require.NoError(t, err)
	fromYAML, err := Decode([]byte(minimalYAML), FormatYAML, true)
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
	assert.NoError(t, fromJSON.Validate())
}

func TestDecode_StrictRejectsUnknownFields(t *testing.T) {
	doc := `{"name": "x", "stages": [{"id": "a", "colour": "red"}]}`

	_, err := Decode([]byte(doc), FormatJSON, true)
	assert.Error(t, err)

	s, err := Decode([]byte(doc), FormatJSON, false)
	require.NoError(t, err)
	assert.Equal(t, "a", s.Stages[0].ID)

	_, err = Decode([]byte("name: x\nbogus: 1\n"), FormatYAML, true)
	assert.Error(t, err)

	_, err = Decode([]byte(doc), Format("toml"), false)
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{"a.json": FormatJSON, "b.YAML": FormatYAML, "c.yml": FormatYAML}
	for name, want := range tests {
		got, ok := FormatOf(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := FormatOf("notes.txt")
	assert.False(t, ok)
}

func TestDefinitions(t *testing.T) {
	s, err := Decode([]byte(minimalJSON), FormatJSON, true)
	require.NoError(t, err)

	assert.Equal(t, state.RoamingSuccess, s.Roaming())
	assert.Equal(t, state.Fog("2"), s.Fog())
	assert.Equal(t, 500*time.Millisecond, s.AnimationDuration())

	stages := s.StageDefinitions()
	require.Len(t, stages, 3)
	assert.Equal(t, stage.KindStage, stages[0].Kind)
	assert.Equal(t, stage.KindSpecial, stages[2].Kind)
	assert.Equal(t, stage.SpecialExtraTime, stages[2].Special)
	assert.Equal(t, 20*time.Second, stages[2].ExtraTime)

	bundles := s.BundleDefinitions()
	require.Len(t, bundles, 2, "special stages have no bundle")
	assert.True(t, bundles[0].Exercises[0].IsTask)
	assert.False(t, bundles[1].Exercises[0].IsTask)
	assert.Equal(t, 30*time.Second, bundles[1].TimeLimit)
	assert.Equal(t, 5*time.Second, bundles[1].TimeLimitWarning)
}

func TestDefaults(t *testing.T) {
	s := &Scenario{}
	assert.Equal(t, state.RoamingComplete, s.Roaming())
	assert.Equal(t, state.FogAll, s.Fog())
	assert.Equal(t, DefaultAnimationDuration, s.AnimationDuration())

	off := false
	s.Visual.Misc.UseAnimation = &off
	assert.Equal(t, time.Duration(0), s.AnimationDuration())
}

func TestValidate_ReportsEveryIssue(t *testing.T) {
	s := &Scenario{
		Stages: []Stage{
			{ID: "a", Neighbors: []string{"a", "ghost"}},
			{ID: "a"},
			{ID: "Bad Id"},
			{ID: "s", Type: "special-stage", SpecialStageType: "teleport"},
			{ID: "l", Type: "special-stage", SpecialStageType: "link"},
			{ID: "w", Type: "portal"},
			{ID: "c", Content: &Content{TimeLimit: 10, TimeLimitWarning: 10, Exercises: []Exercise{{ID: "x"}, {ID: "x", MaxScore: -1}}}},
		},
		Behaviour: Behaviour{Map: MapBehaviour{Roaming: "wander", Fog: "thick"}, Lives: -1},
	}

	err := s.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	want := []string{
		"scenario name is required",
		"duplicate stage id 'a'",
		"stage id 'Bad Id' should be lowercase snake_case or kebab-case",
		"stage 'a' lists itself as a neighbor",
		"stage 'a' has unknown neighbor 'ghost'",
		"special stage 's' has unknown special_stage_type 'teleport'",
		"link stage 'l' needs a url",
		"stage 'w' has unknown type 'portal'",
		"stage 'c' has duplicate exercise id 'x'",
		"exercise 'x' in stage 'c' has negative max_score",
		"stage 'c' warns at or after its time limit",
		"unknown roaming 'wander'",
		"fog must be 'all' or a hop count, got 'thick'",
		"lives cannot be negative",
	}
	assert.Equal(t, want, verr.Issues)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestValidate_Restrictions(t *testing.T) {
	s, err := Decode([]byte(`{
		"name": "R",
		"stages": [
			{"id": "a", "neighbors": ["b"]},
			{"id": "b", "access_restrictions": {"sets": [{"restrictions": [
				{"type": "total-score", "operator": "greaterThan", "value": "3"},
				{"type": "total-score", "operator": "around", "value": "3"},
				{"type": "stage-score", "operator": "equal", "value": "1", "stage_id": "zzz"},
				{"type": "expression", "operator": "true", "value": "totalScore >"},
				{"type": "weather", "operator": "equal", "value": "sunny"}
			]}]}}
		]
	}`), FormatJSON, true)
	require.NoError(t, err)

	var verr *ValidationError
	require.ErrorAs(t, s.Validate(), &verr)
	assert.Len(t, verr.Issues, 4)
	assert.Contains(t, verr.Issues[1], "unknown stage 'zzz'")
}

func TestLoadFile_BundledScenarios(t *testing.T) {
	for _, name := range []string{"forest_trail.json", "island_hop.yaml"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadFile(filepath.Join("..", "..", "data", "scenarios", name), true)
			require.NoError(t, err)
			assert.Equal(t, name, s.FileName)
			assert.NoError(t, s.Validate())
		})
	}

	_, err := LoadFile("missing.json", false)
	assert.Error(t, err)
	_, err = LoadFile("scenario.txt", false)
	assert.Error(t, err)
}
