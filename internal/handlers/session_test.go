package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/map-engine/internal/session"
	"github.com/jwebster45206/map-engine/pkg/engine"
	"github.com/jwebster45206/map-engine/pkg/scenario"
	"github.com/jwebster45206/map-engine/pkg/storage"
)

func twoStageScenario() *scenario.Scenario {
	off := false
	q := []scenario.Exercise{{ID: "q", MaxScore: 1}}
	return &scenario.Scenario{
		Name: "Two Stages",
		Stages: []scenario.Stage{
			{ID: "start", Neighbors: []string{"end"}, Content: &scenario.Content{Exercises: q}},
			{ID: "end", Content: &scenario.Content{Exercises: q}},
		},
		Behaviour: scenario.Behaviour{Map: scenario.MapBehaviour{Roaming: "complete", Fog: "all"}, Lives: 2},
		Visual:    scenario.Visual{Misc: scenario.Misc{UseAnimation: &off}},
	}
}

func newSessionHandler(t *testing.T) (*SessionHandler, *storage.MockStorage) {
	t.Helper()
	store := storage.NewMockStorage()
	store.AddScenario("two.json", twoStageScenario())
	m := session.NewManager(store, testLogger, session.WithEngineOptions(engine.WithStartPicker(func(int) int { return 0 })))
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return NewSessionHandler(m, testLogger), store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func viewStage(v session.View, id string) session.StageView {
	for _, st := range v.Stages {
		if st.ID == id {
			return st
		}
	}
	return session.StageView{}
}

func TestSessionHandler_Lifecycle(t *testing.T) {
	h, store := newSessionHandler(t)

	rr := do(t, h, http.MethodPost, "/v1/sessions", `{"scenario":"two.json"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	v := decodeView(t, rr)
	id := v.ID
	require.NotEmpty(t, id)
	assert.Equal(t, "Two Stages", v.Name)
	assert.Equal(t, "open", viewStage(v, "start").State)
	require.NotNil(t, v.Lives)
	assert.Equal(t, 2, *v.Lives)

	rr = do(t, h, http.MethodPost, "/v1/sessions/"+id+"/click", `{"stage_id":"start"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decodeView(t, rr)
	assert.Equal(t, "start", v.OpenStage)
	assert.Equal(t, "opened", viewStage(v, "start").State)

	rr = do(t, h, http.MethodPost, "/v1/sessions/"+id+"/score", `{"stage_id":"start","exercise_id":"q","score":1,"max_score":1}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decodeView(t, rr)
	assert.Equal(t, 1, v.Score)
	assert.Equal(t, "cleared", viewStage(v, "start").State)
	assert.True(t, v.CanContinue)

	rr = do(t, h, http.MethodPost, "/v1/sessions/"+id+"/continue", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeView(t, rr).OpenStage)

	assert.Eventually(t, func() bool {
		rr := do(t, h, http.MethodGet, "/v1/sessions/"+id, "")
		return rr.Code == http.StatusOK && viewStage(decodeView(t, rr), "end").State == "open"
	}, 2*time.Second, 10*time.Millisecond)

	rr = do(t, h, http.MethodDelete, "/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	gs, err := store.LoadGameState(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	assert.Nil(t, gs)

	rr = do(t, h, http.MethodGet, "/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionHandler_GameOverAndSolutions(t *testing.T) {
	h, _ := newSessionHandler(t)

	v := decodeView(t, do(t, h, http.MethodPost, "/v1/sessions", `{"scenario":"two.json"}`))
	base := "/v1/sessions/" + v.ID

	do(t, h, http.MethodPost, base+"/click", `{"stage_id":"start"}`)
	v = decodeView(t, do(t, h, http.MethodPost, base+"/score", `{"stage_id":"start","exercise_id":"q","score":0,"max_score":1}`))
	require.NotNil(t, v.Lives)
	assert.Equal(t, 1, *v.Lives)
	assert.False(t, v.GameOver)

	// Scoring the same exercise again below its maximum costs the last life.
	v = decodeView(t, do(t, h, http.MethodPost, base+"/score", `{"stage_id":"start","exercise_id":"q","score":0,"max_score":1}`))
	assert.True(t, v.GameOver)
	assert.Equal(t, "lives", v.GameOverReason)
	assert.Equal(t, "sealed", viewStage(v, "start").State)

	v = decodeView(t, do(t, h, http.MethodPost, base+"/solutions", ""))
	assert.True(t, v.ShowingSolutions)
	assert.Equal(t, "completed", viewStage(v, "start").State)

	v = decodeView(t, do(t, h, http.MethodPost, base+"/reset", ""))
	assert.False(t, v.GameOver)
	assert.Equal(t, 2, *v.Lives)
	assert.Equal(t, "open", viewStage(v, "start").State)

	v = decodeView(t, do(t, h, http.MethodPost, base+"/finish", ""))
	assert.True(t, v.Finished)
}

func TestSessionHandler_Errors(t *testing.T) {
	h, _ := newSessionHandler(t)
	v := decodeView(t, do(t, h, http.MethodPost, "/v1/sessions", `{"scenario":"two.json"}`))
	base := "/v1/sessions/" + v.ID

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{"create without scenario", http.MethodPost, "/v1/sessions", `{}`, http.StatusBadRequest},
		{"create with bad json", http.MethodPost, "/v1/sessions", `{`, http.StatusBadRequest},
		{"create unknown scenario", http.MethodPost, "/v1/sessions", `{"scenario":"nope.json"}`, http.StatusNotFound},
		{"list sessions", http.MethodGet, "/v1/sessions", "", http.StatusMethodNotAllowed},
		{"bad id", http.MethodGet, "/v1/sessions/not-a-uuid", "", http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/v1/sessions/" + uuid.NewString(), "", http.StatusNotFound},
		{"unknown action", http.MethodPost, base + "/jump", "", http.StatusNotFound},
		{"get action", http.MethodGet, base + "/click", "", http.StatusMethodNotAllowed},
		{"click without stage", http.MethodPost, base + "/click", `{}`, http.StatusBadRequest},
		{"score without exercise", http.MethodPost, base + "/score", `{"stage_id":"start"}`, http.StatusBadRequest},
		{"negative score", http.MethodPost, base + "/score", `{"stage_id":"start","exercise_id":"q","score":-1}`, http.StatusBadRequest},
		{"too deep", http.MethodPost, base + "/click/again", "", http.StatusNotFound},
		{"patch session", http.MethodPatch, base, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSessionHandler_InvalidScenario(t *testing.T) {
	store := storage.NewMockStorage()
	bad := twoStageScenario()
	bad.Stages[1].ID = "start"
	store.AddScenario("bad.json", bad)
	m := session.NewManager(store, testLogger)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	h := NewSessionHandler(m, testLogger)

	rr := do(t, h, http.MethodPost, "/v1/sessions", `{"scenario":"bad.json"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp.Error, "invalid scenario")
}
