// Package session keeps live map sessions. Each session owns an engine and
// the event loop it runs on; every action is executed on that loop and the
// resulting snapshot is written to storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/map-engine/internal/logger"
	"github.com/jwebster45206/map-engine/internal/metrics"
	"github.com/jwebster45206/map-engine/internal/services/events"
	"github.com/jwebster45206/map-engine/pkg/engine"
	"github.com/jwebster45206/map-engine/pkg/loop"
	"github.com/jwebster45206/map-engine/pkg/scenario"
	"github.com/jwebster45206/map-engine/pkg/state"
	"github.com/jwebster45206/map-engine/pkg/storage"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrInvalidScenario  = errors.New("invalid scenario")
)

// Publisher is implemented by events.Broadcaster.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, eventType events.EventType, data map[string]any) error
}

// Session is one running map.
type Session struct {
	ID        uuid.UUID
	Scenario  string
	CreatedAt time.Time

	loop   *loop.Loop
	engine *engine.Engine
	logger *slog.Logger

	// Owned by the loop goroutine.
	events    []events.Event
	lastLives int
	seq       uint64

	saveMu  sync.Mutex
	savedAt uint64
	deleted bool
}

func (s *Session) drainEvents() []events.Event {
	out := s.events
	s.events = nil
	return out
}

// Option configures a Manager.
type Option func(*Manager)

func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithEngineOptions appends options to every engine the manager builds.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(m *Manager) { m.engineOpts = append(m.engineOpts, opts...) }
}

// Manager creates, restores and drives sessions.
type Manager struct {
	storage    storage.Storage
	publisher  Publisher
	metrics    *metrics.Collector
	logger     *slog.Logger
	engineOpts []engine.Option

	mu        sync.Mutex
	sessions  map[uuid.UUID]*Session
	restoring map[uuid.UUID]chan struct{}
	saves     sync.WaitGroup
}

func NewManager(store storage.Storage, log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		storage:   store,
		logger:    log,
		sessions:  make(map[uuid.UUID]*Session),
		restoring: make(map[uuid.UUID]chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session for the scenario file.
func (m *Manager) Create(ctx context.Context, scenarioFile string) (*View, error) {
	sc, err := m.loadScenario(ctx, scenarioFile)
	if err != nil {
		return nil, err
	}
	gs := state.NewGameState(scenarioFile)

	s, err := m.start(gs, sc)
	if err != nil {
		return nil, err
	}
	view, snap, seq, err := m.run(s, func(*engine.Engine) {})
	if err != nil {
		m.drop(s)
		return nil, err
	}
	if err := m.save(ctx, s, seq, snap); err != nil {
		m.drop(s)
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SessionCreated()
		m.metrics.SessionOpened()
	}
	s.logger.Info("Session created", "scenario", scenarioFile)
	return view, nil
}

// Get returns the current view of a session, restoring it from storage
// when it is not in memory.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	s, err := m.session(ctx, id)
	if err != nil {
		return nil, err
	}
	view, _, _, err := m.run(s, func(*engine.Engine) {})
	return view, err
}

// Delete stops a session and removes its stored state.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.drop(s)
		if m.metrics != nil {
			m.metrics.SessionClosed()
		}
	} else {
		gs, err := m.storage.LoadGameState(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if gs == nil {
			return ErrSessionNotFound
		}
	}
	if err := m.storage.DeleteGameState(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.logger.Info("Session deleted", "session_id", id.String())
	return nil
}

func (m *Manager) Click(ctx context.Context, id uuid.UUID, stageID string) (*View, error) {
	return m.act(ctx, id, func(e *engine.Engine) { e.Click(stageID) })
}

func (m *Manager) Score(ctx context.Context, id uuid.UUID, stageID, exerciseID string, score, maxScore int) (*View, error) {
	if m.metrics != nil {
		m.metrics.ExerciseScored()
	}
	return m.act(ctx, id, func(e *engine.Engine) { e.HandleScored(stageID, exerciseID, score, maxScore) })
}

func (m *Manager) CloseExercise(ctx context.Context, id uuid.UUID) (*View, error) {
	return m.act(ctx, id, func(e *engine.Engine) { e.CloseExercise() })
}

func (m *Manager) ContinueExercise(ctx context.Context, id uuid.UUID) (*View, error) {
	return m.act(ctx, id, func(e *engine.Engine) { e.ContinueExercise() })
}

func (m *Manager) Reset(ctx context.Context, id uuid.UUID) (*View, error) {
	return m.act(ctx, id, func(e *engine.Engine) { e.Reset() })
}

func (m *Manager) ShowSolutions(ctx context.Context, id uuid.UUID) (*View, error) {
	return m.act(ctx, id, func(e *engine.Engine) { e.ShowSolutions() })
}

func (m *Manager) Finish(ctx context.Context, id uuid.UUID) (*View, error) {
	return m.act(ctx, id, func(e *engine.Engine) { e.Finish() })
}

// Len reports how many sessions are held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown saves and stops every session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		var snap *state.Snapshot
		var seq uint64
		if err := s.loop.Do(func() {
			snap = s.engine.CurrentState()
			s.seq++
			seq = s.seq
			s.engine.Destroy()
		}); err == nil {
			if err := m.save(ctx, s, seq, snap); err != nil {
				errs = append(errs, err)
			}
		}
		s.loop.Close()
		if m.metrics != nil {
			m.metrics.SessionClosed()
		}
	}
	m.saves.Wait()
	return errors.Join(errs...)
}

// act runs fn on the session loop and persists the result.
func (m *Manager) act(ctx context.Context, id uuid.UUID, fn func(e *engine.Engine)) (*View, error) {
	s, err := m.session(ctx, id)
	if err != nil {
		return nil, err
	}
	view, snap, seq, err := m.run(s, fn)
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, s, seq, snap); err != nil {
		return nil, err
	}
	return view, nil
}

// run executes fn on the loop and captures a view and snapshot of the
// state it left behind.
func (m *Manager) run(s *Session, fn func(e *engine.Engine)) (*View, *state.Snapshot, uint64, error) {
	var view *View
	var snap *state.Snapshot
	var seq uint64
	err := s.loop.Do(func() {
		fn(s.engine)
		view = buildView(s)
		snap = s.engine.CurrentState()
		s.seq++
		seq = s.seq
	})
	if err != nil {
		return nil, nil, 0, ErrSessionNotFound
	}
	return view, snap, seq, nil
}

// persistAsync stores the current snapshot without blocking the loop. It
// must be called on the loop.
func (m *Manager) persistAsync(s *Session) {
	snap := s.engine.CurrentState()
	s.seq++
	seq := s.seq
	m.saves.Add(1)
	go func() {
		defer m.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.save(ctx, s, seq, snap); err != nil {
			logger.WithError(s.logger, err).Error("Failed to persist session")
		}
	}()
}

// save writes snap unless a newer snapshot has already been written or
// the session was deleted.
func (m *Manager) save(ctx context.Context, s *Session, seq uint64, snap *state.Snapshot) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.deleted || seq <= s.savedAt {
		return nil
	}
	gs := &state.GameState{
		ID:        s.ID,
		Scenario:  s.Scenario,
		Snapshot:  snap,
		CreatedAt: s.CreatedAt,
	}
	if err := m.storage.SaveGameState(ctx, s.ID, gs); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.savedAt = seq
	return nil
}

// session returns the live session, restoring it when needed. Storage and
// engine start run without m.mu; concurrent callers for the same id wait
// for the restore already in flight.
func (m *Manager) session(ctx context.Context, id uuid.UUID) (*Session, error) {
	for {
		m.mu.Lock()
		if s, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return s, nil
		}
		pending, busy := m.restoring[id]
		if !busy {
			break
		}
		m.mu.Unlock()
		select {
		case <-pending:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	done := make(chan struct{})
	m.restoring[id] = done
	m.mu.Unlock()

	s, err := m.restore(ctx, id)

	m.mu.Lock()
	delete(m.restoring, id)
	if err == nil {
		m.sessions[id] = s
	}
	m.mu.Unlock()
	close(done)

	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.SessionRestored()
		m.metrics.SessionOpened()
	}
	s.logger.Info("Session restored", "scenario", s.Scenario)
	return s, nil
}

func (m *Manager) restore(ctx context.Context, id uuid.UUID) (*Session, error) {
	gs, err := m.storage.LoadGameState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if gs == nil {
		return nil, ErrSessionNotFound
	}
	sc, err := m.loadScenario(ctx, gs.Scenario)
	if err != nil {
		return nil, err
	}
	return m.start(gs, sc)
}

func (m *Manager) loadScenario(ctx context.Context, filename string) (*scenario.Scenario, error) {
	sc, err := m.storage.GetScenario(ctx, filename)
	if err != nil {
		if errors.Is(err, storage.ErrScenarioNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, filename)
		}
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return sc, nil
}

// start builds the engine for gs on a fresh loop and starts it.
func (m *Manager) start(gs *state.GameState, sc *scenario.Scenario) (*Session, error) {
	s := &Session{
		ID:        gs.ID,
		Scenario:  gs.Scenario,
		CreatedAt: gs.CreatedAt,
		logger:    logger.WithSession(m.logger, gs.ID.String()),
		lastLives: -1,
	}
	s.loop = loop.New(s.logger)

	opts := []engine.Option{
		engine.WithScheduler(s.loop),
		engine.WithListener(&listener{m: m, s: s}),
		engine.WithLogger(s.logger),
	}
	if gs.Snapshot != nil {
		opts = append(opts, engine.WithSnapshot(gs.Snapshot))
	}
	opts = append(opts, m.engineOpts...)

	e, err := engine.New(sc, opts...)
	if err != nil {
		s.loop.Close()
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	s.engine = e
	if err := s.loop.Do(e.Start); err != nil {
		s.loop.Close()
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return s, nil
}

// drop stops s without writing it to storage again.
func (m *Manager) drop(s *Session) {
	s.saveMu.Lock()
	s.deleted = true
	s.saveMu.Unlock()
	_ = s.loop.Do(s.engine.Destroy)
	s.loop.Close()
}
