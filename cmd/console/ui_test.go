package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwebster45206/map-engine/internal/services/events"
	"github.com/jwebster45206/map-engine/internal/session"
)

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		name  string
		event events.Event
		want  string
	}{
		{
			name:  "state change",
			event: events.Event{Type: events.EventStageStateChanged, Data: map[string]any{"stage_id": "meadow", "to": "cleared"}},
			want:  "meadow is now Cleared",
		},
		{
			name:  "locked",
			event: events.Event{Type: events.EventAccessDenied, Data: map[string]any{"stage_id": "tower", "message_key": "locked"}},
			want:  "tower is locked",
		},
		{
			name:  "restricted",
			event: events.Event{Type: events.EventAccessDenied, Data: map[string]any{"stage_id": "tower", "message_key": "restricted"}},
			want:  "tower is not available yet",
		},
		{
			name:  "unlimited lives are not logged",
			event: events.Event{Type: events.EventLivesChanged, Data: map[string]any{"lives": 0, "unlimited": true}},
		},
		{
			name:  "ticks are not logged",
			event: events.Event{Type: events.EventTimerTick},
		},
		{
			name:  "game over",
			event: events.Event{Type: events.EventGameOver, Data: map[string]any{"reason": "time"}},
			want:  "Game over (time)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeEvent(tt.event))
		})
	}
}

func TestStageLabel(t *testing.T) {
	assert.Equal(t, "meadow", stageLabel(session.StageView{ID: "meadow"}))
	assert.Equal(t, "The Meadow", stageLabel(session.StageView{ID: "meadow", Label: "The Meadow"}))
	assert.Equal(t, "well ★", stageLabel(session.StageView{ID: "well", Special: "extra-life"}))
}

func TestApplyViewKeepsSelectionInRange(t *testing.T) {
	m := NewConsoleUI(&apiClient{})
	m.selected = 5
	m.applyView(&session.View{
		Stages: []session.StageView{{ID: "a"}, {ID: "b"}},
		Events: []events.Event{{Type: events.EventGameOver, Data: map[string]any{"reason": "lives"}}},
	})
	assert.Equal(t, 1, m.selected)
	assert.Equal(t, []string{"Game over (lives)"}, m.log)
}
