package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/map-engine/internal/session"
)

const (
	// PollInterval is how often a wait step re-reads the session
	PollInterval = 250 * time.Millisecond
	// WaitTimeout bounds a single wait step
	WaitTimeout = 10 * time.Second
)

// CreateSession starts a session for the scenario file name
func CreateSession(ctx context.Context, client *http.Client, baseURL, scenario string) (*session.View, error) {
	return doView(ctx, client, http.MethodPost, baseURL+"/v1/sessions", map[string]string{"scenario": scenario}, http.StatusCreated)
}

// GetSession retrieves the current session view
func GetSession(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) (*session.View, error) {
	return doView(ctx, client, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", baseURL, id), nil, http.StatusOK)
}

// DeleteSession stops and removes a session
func DeleteSession(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/v1/sessions/%s", baseURL, id), nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete session returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// PostAction sends one step to the session and returns the resulting view
func PostAction(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, step TestStep) (*session.View, error) {
	var body any
	switch step.Action {
	case ActionClick:
		body = map[string]string{"stage_id": step.StageID}
	case ActionScore:
		body = map[string]any{
			"stage_id":    step.StageID,
			"exercise_id": step.ExerciseID,
			"score":       step.Score,
			"max_score":   step.MaxScore,
		}
	}
	url := fmt.Sprintf("%s/v1/sessions/%s/%s", baseURL, id, step.Action)
	return doView(ctx, client, http.MethodPost, url, body, http.StatusOK)
}

func doView(ctx context.Context, client *http.Client, method, url string, body any, want int) (*session.View, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s returned %d (expected %d): %s", method, url, resp.StatusCode, want, string(data))
	}

	var view session.View
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("failed to decode session view: %w", err)
	}
	return &view, nil
}

// PollForExpectations re-reads the session until check passes or WaitTimeout expires.
// Unlock animations and timers make some transitions land after the request returns.
func PollForExpectations(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, check func(*session.View) error) (int, error) {
	timeout := time.After(WaitTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	polls := 0
	lastErr := fmt.Errorf("no poll completed")
	for {
		select {
		case <-ctx.Done():
			return polls, ctx.Err()
		case <-timeout:
			return polls, fmt.Errorf("timeout waiting for session state (waited %v): %w", WaitTimeout, lastErr)
		case <-ticker.C:
			polls++
			view, err := GetSession(ctx, client, baseURL, id)
			if err != nil {
				lastErr = err
				continue
			}
			if lastErr = check(view); lastErr == nil {
				return polls, nil
			}
		}
	}
}
