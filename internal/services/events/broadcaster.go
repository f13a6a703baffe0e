package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventStageStateChanged      EventType = "stage.state_changed"
	EventStageVisibilityChanged EventType = "stage.visibility_changed"
	EventPathChanged            EventType = "path.changed"
	EventAccessDenied           EventType = "stage.access_denied"
	EventExerciseOpened         EventType = "exercise.opened"
	EventExerciseClosed         EventType = "exercise.closed"
	EventExerciseCompleted      EventType = "exercise.completed"
	EventTimerTick              EventType = "timer.tick"
	EventTimerWarning           EventType = "timer.warning"
	EventTimeout                EventType = "timer.timeout"
	EventLivesChanged           EventType = "lives.changed"
	EventScoreChanged           EventType = "score.changed"
	EventProgress               EventType = "map.progress"
	EventSpecialStage           EventType = "stage.special"
	EventOpenLink               EventType = "link.open"
	EventFinishAvailable        EventType = "map.finish_available"
	EventFinished               EventType = "map.finished"
	EventGameOver               EventType = "map.game_over"
)

// Event is the payload published for every engine notification.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel is the pub/sub channel of one session.
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("map-events:%s", sessionID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish sends event to the session channel.
func (b *Broadcaster) Publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, data map[string]any) error {
	event := Event{
		Type:      eventType,
		SessionID: sessionID.String(),
		Data:      data,
	}
	channel := Channel(sessionID)

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", eventType)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", eventType)
	return nil
}

// Subscribe opens a subscription to the session channel. The caller
// closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(sessionID))
}
