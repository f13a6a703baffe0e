package state

import (
	"time"

	"github.com/google/uuid"
)

// GameState is a stored map session: which scenario it plays and the
// snapshot of its progress.
type GameState struct {
	ID        uuid.UUID `json:"id"`       // Unique ID per session
	Scenario  string    `json:"scenario"` // Scenario filename
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewGameState(scenarioFileName string) *GameState {
	now := time.Now()
	return &GameState{
		ID:        uuid.New(),
		Scenario:  scenarioFileName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
