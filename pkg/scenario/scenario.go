package scenario

import "github.com/jwebster45206/map-engine/pkg/restriction"

// Scenario is an authored map: its stages, their adjacency and content,
// and the settings that govern play.
type Scenario struct {
	Name        string    `json:"name" yaml:"name"`                                   // Display name of the map
	FileName    string    `json:"file_name,omitempty" yaml:"file_name,omitempty"`     // File the scenario was loaded from
	Description string    `json:"description,omitempty" yaml:"description,omitempty"` // Short blurb for listings
	Stages      []Stage   `json:"stages" yaml:"stages"`
	Behaviour   Behaviour `json:"behaviour" yaml:"behaviour"`
	Visual      Visual    `json:"visual" yaml:"visual"`
}

// Stage is one authored map node.
type Stage struct {
	ID                 string                          `json:"id" yaml:"id"`
	Label              string                          `json:"label,omitempty" yaml:"label,omitempty"`
	Type               string                          `json:"type,omitempty" yaml:"type,omitempty"`                             // "stage" (default) or "special-stage"
	SpecialStageType   string                          `json:"special_stage_type,omitempty" yaml:"special_stage_type,omitempty"` // extra-life, extra-time, link, finish
	Neighbors          []string                        `json:"neighbors,omitempty" yaml:"neighbors,omitempty"`
	CanBeStartStage    bool                            `json:"can_be_start_stage,omitempty" yaml:"can_be_start_stage,omitempty"`
	AccessRestrictions *restriction.RestrictionsParams `json:"access_restrictions,omitempty" yaml:"access_restrictions,omitempty"`
	Content            *Content                        `json:"content,omitempty" yaml:"content,omitempty"`
	Special            *Special                        `json:"special,omitempty" yaml:"special,omitempty"`
}

// Content is the exercise bundle behind an ordinary stage.
type Content struct {
	SubContentID     string     `json:"sub_content_id,omitempty" yaml:"sub_content_id,omitempty"`
	TimeLimit        int        `json:"time_limit,omitempty" yaml:"time_limit,omitempty"`                 // seconds, 0 for none
	TimeLimitWarning int        `json:"time_limit_warning,omitempty" yaml:"time_limit_warning,omitempty"` // seconds left when the warning fires
	Exercises        []Exercise `json:"exercises" yaml:"exercises"`
}

// Exercise is one piece of content in a bundle. Exercises are tasks unless
// is_task is set to false.
type Exercise struct {
	ID       string `json:"id" yaml:"id"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	IsTask   *bool  `json:"is_task,omitempty" yaml:"is_task,omitempty"`
	MaxScore int    `json:"max_score,omitempty" yaml:"max_score,omitempty"`
}

// Special holds the parameters of a special stage.
type Special struct {
	ExtraLives int    `json:"extra_lives,omitempty" yaml:"extra_lives,omitempty"`
	ExtraTime  int    `json:"extra_time,omitempty" yaml:"extra_time,omitempty"` // seconds
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Behaviour holds the gameplay settings.
type Behaviour struct {
	Map              MapBehaviour `json:"map" yaml:"map"`
	Lives            int          `json:"lives,omitempty" yaml:"lives,omitempty"`                           // 0 means unlimited
	FinishScore      int          `json:"finish_score,omitempty" yaml:"finish_score,omitempty"`             // 0 disables the finish prompt
	TimeLimitGlobal  int          `json:"time_limit_global,omitempty" yaml:"time_limit_global,omitempty"`   // seconds, 0 for none
	TimeLimitWarning int          `json:"time_limit_warning,omitempty" yaml:"time_limit_warning,omitempty"` // seconds
}

type MapBehaviour struct {
	Roaming string `json:"roaming,omitempty" yaml:"roaming,omitempty"` // free, complete, success
	Fog     string `json:"fog,omitempty" yaml:"fog,omitempty"`         // all or a hop count
}

type Visual struct {
	Misc Misc `json:"misc" yaml:"misc"`
}

type Misc struct {
	UseAnimation      *bool `json:"use_animation,omitempty" yaml:"use_animation,omitempty"`           // default true
	AnimationDuration int   `json:"animation_duration,omitempty" yaml:"animation_duration,omitempty"` // milliseconds
}

// UsesAnimation reports the animation setting, true when unset.
func (v Visual) UsesAnimation() bool {
	return v.Misc.UseAnimation == nil || *v.Misc.UseAnimation
}

// Stage returns the stage with id, or nil.
func (s *Scenario) Stage(id string) *Stage {
	for i := range s.Stages {
		if s.Stages[i].ID == id {
			return &s.Stages[i]
		}
	}
	return nil
}
