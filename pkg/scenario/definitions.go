package scenario

import (
	"time"

	"github.com/jwebster45206/map-engine/pkg/exercise"
	"github.com/jwebster45206/map-engine/pkg/stage"
	"github.com/jwebster45206/map-engine/pkg/state"
)

// DefaultAnimationDuration applies when the authored duration is unset.
const DefaultAnimationDuration = 300 * time.Millisecond

// Roaming returns the parsed roaming policy.
func (s *Scenario) Roaming() state.Roaming {
	return state.ParseRoaming(s.Behaviour.Map.Roaming)
}

// Fog returns the fog policy, all when unset.
func (s *Scenario) Fog() state.Fog {
	if s.Behaviour.Map.Fog == "" {
		return state.FogAll
	}
	return state.Fog(s.Behaviour.Map.Fog)
}

// AnimationDuration is the length of one state change animation, zero when
// animation is off.
func (s *Scenario) AnimationDuration() time.Duration {
	if !s.Visual.UsesAnimation() {
		return 0
	}
	if s.Visual.Misc.AnimationDuration > 0 {
		return time.Duration(s.Visual.Misc.AnimationDuration) * time.Millisecond
	}
	return DefaultAnimationDuration
}

// StageDefinitions converts the authored stages for the stage package.
func (s *Scenario) StageDefinitions() []stage.Definition {
	defs := make([]stage.Definition, 0, len(s.Stages))
	for _, st := range s.Stages {
		d := stage.Definition{
			ID:           st.ID,
			Label:        st.Label,
			Kind:         stage.KindStage,
			Neighbors:    st.Neighbors,
			CanBeStart:   st.CanBeStartStage,
			Restrictions: st.AccessRestrictions,
		}
		if stage.Kind(st.Type) == stage.KindSpecial {
			d.Kind = stage.KindSpecial
			d.Special = stage.Special(st.SpecialStageType)
			if st.Special != nil {
				d.ExtraLives = st.Special.ExtraLives
				d.ExtraTime = time.Duration(st.Special.ExtraTime) * time.Second
				d.URL = st.Special.URL
			}
		}
		defs = append(defs, d)
	}
	return defs
}

// BundleDefinitions returns one bundle per ordinary stage. Stages without
// content get an empty bundle that clears itself when opened.
func (s *Scenario) BundleDefinitions() []exercise.BundleDefinition {
	var defs []exercise.BundleDefinition
	for _, st := range s.Stages {
		if stage.Kind(st.Type) == stage.KindSpecial {
			continue
		}
		d := exercise.BundleDefinition{ID: st.ID}
		if c := st.Content; c != nil {
			d.SubContentID = c.SubContentID
			d.TimeLimit = time.Duration(c.TimeLimit) * time.Second
			d.TimeLimitWarning = time.Duration(c.TimeLimitWarning) * time.Second
			for _, ex := range c.Exercises {
				d.Exercises = append(d.Exercises, exercise.Definition{
					ID:       ex.ID,
					Type:     ex.Type,
					IsTask:   ex.IsTask == nil || *ex.IsTask,
					MaxScore: ex.MaxScore,
				})
			}
		}
		defs = append(defs, d)
	}
	return defs
}
