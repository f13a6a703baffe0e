package session

import (
	"github.com/jwebster45206/map-engine/internal/services/events"
	"github.com/jwebster45206/map-engine/pkg/engine"
)

// View is the JSON shape of a session returned by the API.
type View struct {
	ID               string         `json:"id"`
	Scenario         string         `json:"scenario"`
	Name             string         `json:"name"`
	StartStageID     string         `json:"start_stage_id"`
	OpenStage        string         `json:"open_stage,omitempty"`
	CanContinue      bool           `json:"can_continue"`
	Stages           []StageView    `json:"stages"`
	Paths            []PathView     `json:"paths"`
	Lives            *int           `json:"lives,omitempty"` // nil when unlimited
	Score            int            `json:"score"`
	MaxScore         int            `json:"max_score"`
	ClearedStages    int            `json:"cleared_stages"`
	TotalStages      int            `json:"total_stages"`
	RemainingTimeMS  *int64         `json:"remaining_time_ms,omitempty"` // global time limit only
	GameOver         bool           `json:"game_over"`
	GameOverReason   string         `json:"game_over_reason,omitempty"`
	ShowingSolutions bool           `json:"showing_solutions"`
	Finished         bool           `json:"finished"`
	Events           []events.Event `json:"events,omitempty"` // notifications since the last request
}

type StageView struct {
	ID        string   `json:"id"`
	Label     string   `json:"label,omitempty"`
	Type      string   `json:"type"`
	Special   string   `json:"special,omitempty"`
	State     string   `json:"state"`
	Visible   bool     `json:"visible"`
	Reachable bool     `json:"reachable"`
	Neighbors []string `json:"neighbors"`
	Score     int      `json:"score"`
	MaxScore  int      `json:"max_score"`
}

type PathView struct {
	From    string `json:"from"`
	To      string `json:"to"`
	State   string `json:"state"`
	Visible bool   `json:"visible"`
}

// buildView reads the engine. It must run on the session loop.
func buildView(s *Session) *View {
	e := s.engine
	p := e.Progress()
	v := &View{
		ID:               s.ID.String(),
		Scenario:         s.Scenario,
		Name:             e.Scenario().Name,
		StartStageID:     e.StartStageID(),
		OpenStage:        e.OpenStage(),
		CanContinue:      e.CanContinue(),
		Score:            p.Score,
		MaxScore:         p.MaxScore,
		ClearedStages:    p.ClearedStages,
		TotalStages:      p.TotalStages,
		GameOver:         e.IsGameOver(),
		GameOverReason:   string(e.GameOverReason()),
		ShowingSolutions: e.ShowingSolutions(),
		Finished:         e.IsFinished(),
	}
	if lives, unlimited := e.Lives(); !unlimited {
		v.Lives = &lives
	}
	if remaining, ok := e.RemainingGlobalTime(); ok {
		ms := remaining.Milliseconds()
		v.RemainingTimeMS = &ms
	}

	for _, st := range e.Stages() {
		sv := StageView{
			ID:        st.ID(),
			Label:     st.Label(),
			Type:      string(st.Kind()),
			Special:   string(st.Special()),
			State:     st.State().String(),
			Visible:   st.Visible(),
			Reachable: st.Reachable(),
			Neighbors: st.Neighbors(),
		}
		if b := e.Bundle(st.ID()); b != nil {
			sv.Score = b.Score()
			sv.MaxScore = b.MaxScore()
		}
		v.Stages = append(v.Stages, sv)
	}
	for _, path := range e.Paths() {
		v.Paths = append(v.Paths, PathView{
			From:    path.From(),
			To:      path.To(),
			State:   path.State().String(),
			Visible: path.Visible(),
		})
	}
	v.Events = s.drainEvents()
	return v
}

// progressData is the event payload of an engine.Progress.
func progressData(p engine.Progress) map[string]any {
	return map[string]any{
		"cleared_stages": p.ClearedStages,
		"total_stages":   p.TotalStages,
		"score":          p.Score,
		"max_score":      p.MaxScore,
	}
}
