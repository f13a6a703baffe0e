package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/jwebster45206/map-engine/internal/session"
	"github.com/jwebster45206/map-engine/pkg/scenario"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// apiClient talks to the map engine API.
type apiClient struct {
	http    *http.Client
	baseURL string
}

func (c *apiClient) testConnection() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// listScenarios returns scenario names in display order with the
// name to filename map.
func (c *apiClient) listScenarios() ([]string, map[string]string, error) {
	var list map[string]string
	if err := c.do(http.MethodGet, "/v1/scenarios", nil, &list); err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(list))
	for name := range list {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, list, nil
}

func (c *apiClient) getScenario(filename string) (*scenario.Scenario, error) {
	var sc scenario.Scenario
	if err := c.do(http.MethodGet, "/v1/scenarios/"+filename, nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (c *apiClient) createSession(scenarioFile string) (*session.View, error) {
	var v session.View
	if err := c.do(http.MethodPost, "/v1/sessions", map[string]string{"scenario": scenarioFile}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *apiClient) getSession(id string) (*session.View, error) {
	var v session.View
	if err := c.do(http.MethodGet, "/v1/sessions/"+id, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *apiClient) click(id, stageID string) (*session.View, error) {
	var v session.View
	if err := c.do(http.MethodPost, "/v1/sessions/"+id+"/click", map[string]string{"stage_id": stageID}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *apiClient) score(id, stageID, exerciseID string, score, maxScore int) (*session.View, error) {
	body := map[string]any{
		"stage_id":    stageID,
		"exercise_id": exerciseID,
		"score":       score,
		"max_score":   maxScore,
	}
	var v session.View
	if err := c.do(http.MethodPost, "/v1/sessions/"+id+"/score", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// action posts one of close, continue, reset, solutions or finish.
func (c *apiClient) action(id, name string) (*session.View, error) {
	var v session.View
	if err := c.do(http.MethodPost, "/v1/sessions/"+id+"/"+name, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("API error: %s", errorResp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
