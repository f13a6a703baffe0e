package state

import "encoding/json"

// Snapshot is the persisted form of a running map. Restoring a Snapshot
// into a fresh engine built from the same scenario yields the same
// observable state.
type Snapshot struct {
	Stages              []StageSnapshot  `json:"stages"`
	Paths               []PathSnapshot   `json:"paths"`
	ExerciseBundles     []BundleSnapshot `json:"exerciseBundles"`
	LivesLeft           *int             `json:"livesLeft,omitempty"` // nil means unlimited
	StartStageID        string           `json:"startStageId,omitempty"`
	RemainingGlobalTime *int64           `json:"remainingGlobalTime,omitempty"` // milliseconds
	GameOver            bool             `json:"gameOver,omitempty"`
	Finished            bool             `json:"finished,omitempty"`
}

type StageSnapshot struct {
	ID      string `json:"id"`
	State   State  `json:"state"`
	Visible bool   `json:"visible"`
}

type PathEnds struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PathSnapshot struct {
	StageIDs PathEnds `json:"stageIds"`
	State    State    `json:"state"`
	Visible  bool     `json:"visible"`
}

type BundleSnapshot struct {
	ID            string             `json:"id"`
	SubContentID  string             `json:"subContentId,omitempty"`
	State         State              `json:"state"`
	RemainingTime *int64             `json:"remainingTime,omitempty"` // milliseconds
	IsCompleted   bool               `json:"isCompleted"`
	Instances     []InstanceSnapshot `json:"instances,omitempty"`
}

// InstanceSnapshot is the stored result of one exercise inside a bundle.
// Content is opaque state owned by the embedding host.
type InstanceSnapshot struct {
	ID        string          `json:"id"`
	Score     int             `json:"score"`
	MaxScore  int             `json:"maxScore"`
	Completed bool            `json:"completed"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Stage returns the stored entry for id.
func (s *Snapshot) Stage(id string) (StageSnapshot, bool) {
	if s == nil {
		return StageSnapshot{}, false
	}
	for _, st := range s.Stages {
		if st.ID == id {
			return st, true
		}
	}
	return StageSnapshot{}, false
}

// Bundle returns the stored entry for id.
func (s *Snapshot) Bundle(id string) (BundleSnapshot, bool) {
	if s == nil {
		return BundleSnapshot{}, false
	}
	for _, b := range s.ExerciseBundles {
		if b.ID == id {
			return b, true
		}
	}
	return BundleSnapshot{}, false
}

// Path returns the stored entry for the unordered pair a, b.
func (s *Snapshot) Path(a, b string) (PathSnapshot, bool) {
	if s == nil {
		return PathSnapshot{}, false
	}
	for _, p := range s.Paths {
		if (p.StageIDs.From == a && p.StageIDs.To == b) || (p.StageIDs.From == b && p.StageIDs.To == a) {
			return p, true
		}
	}
	return PathSnapshot{}, false
}
