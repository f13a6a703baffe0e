package session

import (
	"context"
	"time"

	"github.com/jwebster45206/map-engine/internal/services/events"
	"github.com/jwebster45206/map-engine/pkg/engine"
	"github.com/jwebster45206/map-engine/pkg/stage"
	"github.com/jwebster45206/map-engine/pkg/state"
)

// maxBufferedEvents caps the notifications kept for the next response.
const maxBufferedEvents = 200

const publishTimeout = 2 * time.Second

// listener forwards engine notifications to the broadcaster, the metrics
// collector and the session's event buffer. It runs on the session loop.
type listener struct {
	m *Manager
	s *Session
}

var _ engine.Listener = (*listener)(nil)

func (l *listener) emit(eventType events.EventType, data map[string]any) {
	l.publish(eventType, data)
	if len(l.s.events) >= maxBufferedEvents {
		l.s.events = l.s.events[1:]
	}
	l.s.events = append(l.s.events, events.Event{Type: eventType, SessionID: l.s.ID.String(), Data: data})
}

// publish sends without buffering; used for high-rate ticks.
func (l *listener) publish(eventType events.EventType, data map[string]any) {
	if l.m.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := l.m.publisher.Publish(ctx, l.s.ID, eventType, data); err != nil {
		l.s.logger.Debug("Event not published", "event_type", eventType, "error", err)
	}
}

func (l *listener) OnStageStateChanged(stageID string, from, to state.State) {
	l.emit(events.EventStageStateChanged, map[string]any{"stage_id": stageID, "from": from.String(), "to": to.String()})
}

func (l *listener) OnStageVisibilityChanged(stageID string, visible bool) {
	l.emit(events.EventStageVisibilityChanged, map[string]any{"stage_id": stageID, "visible": visible})
}

func (l *listener) OnPathChanged(c engine.PathChange) {
	l.emit(events.EventPathChanged, map[string]any{"from": c.From, "to": c.To, "state": c.State.String(), "visible": c.Visible})
}

func (l *listener) OnAccessRestrictionsHit(d engine.AccessDenied) {
	if l.m.metrics != nil {
		l.m.metrics.Click(d.MessageKey)
	}
	data := map[string]any{"stage_id": d.StageID, "message_key": d.MessageKey}
	if len(d.Failed) > 0 {
		data["failed"] = d.Failed
	}
	l.emit(events.EventAccessDenied, data)
}

func (l *listener) OnExerciseOpened(stageID string, solutions bool) {
	if l.m.metrics != nil && !solutions {
		l.m.metrics.Click("opened")
	}
	l.emit(events.EventExerciseOpened, map[string]any{"stage_id": stageID, "solutions": solutions})
}

func (l *listener) OnExerciseClosed(stageID string) {
	l.emit(events.EventExerciseClosed, map[string]any{"stage_id": stageID})
}

func (l *listener) OnExerciseCompleted(stageID string, score, maxScore int) {
	l.emit(events.EventExerciseCompleted, map[string]any{"stage_id": stageID, "score": score, "max_score": maxScore})
}

func (l *listener) OnTimerTick(stageID string, remaining time.Duration) {
	l.publish(events.EventTimerTick, map[string]any{"stage_id": stageID, "remaining_ms": remaining.Milliseconds()})
}

func (l *listener) OnTimeoutWarning(stageID string, remaining time.Duration) {
	l.emit(events.EventTimerWarning, map[string]any{"stage_id": stageID, "remaining_ms": remaining.Milliseconds()})
}

func (l *listener) OnTimeout(stageID string) {
	l.emit(events.EventTimeout, map[string]any{"stage_id": stageID})
	l.m.persistAsync(l.s)
}

func (l *listener) OnLivesChanged(lives int, unlimited bool) {
	if !unlimited && l.s.lastLives >= 0 && lives < l.s.lastLives && l.m.metrics != nil {
		l.m.metrics.LifeLost()
	}
	if unlimited {
		l.s.lastLives = -1
	} else {
		l.s.lastLives = lives
	}
	l.emit(events.EventLivesChanged, map[string]any{"lives": lives, "unlimited": unlimited})
}

func (l *listener) OnScoreChanged(score, maxScore int) {
	l.emit(events.EventScoreChanged, map[string]any{"score": score, "max_score": maxScore})
}

func (l *listener) OnProgress(p engine.Progress) {
	l.emit(events.EventProgress, progressData(p))
}

func (l *listener) OnSpecialStage(stageID string, special stage.Special) {
	if l.m.metrics != nil {
		l.m.metrics.Click("special")
	}
	l.emit(events.EventSpecialStage, map[string]any{"stage_id": stageID, "special": string(special)})
}

func (l *listener) OnOpenLink(stageID, url string) {
	l.emit(events.EventOpenLink, map[string]any{"stage_id": stageID, "url": url})
}

func (l *listener) OnFinishAvailable(score, maxScore int) {
	l.emit(events.EventFinishAvailable, map[string]any{"score": score, "max_score": maxScore})
}

func (l *listener) OnFinished(score, maxScore int) {
	if l.m.metrics != nil {
		l.m.metrics.Finished(score, maxScore)
	}
	l.emit(events.EventFinished, map[string]any{"score": score, "max_score": maxScore})
	l.m.persistAsync(l.s)
}

func (l *listener) OnGameOver(reason engine.GameOverReason) {
	if l.m.metrics != nil {
		l.m.metrics.GameOver(string(reason))
	}
	l.emit(events.EventGameOver, map[string]any{"reason": string(reason)})
	l.m.persistAsync(l.s)
}
