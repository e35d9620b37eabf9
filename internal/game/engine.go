package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
	"github.com/thraizz/gridwar-server-go/internal/game/watchers"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrTooManySessions = errors.New("too many sessions")
	ErrMatchNotStarted = errors.New("match not started")
	ErrCellOutOfBounds = errors.New("cell out of bounds")
	ErrReplayDisabled  = errors.New("replay recording is disabled")
)

// NotificationMatchStateChange is sent after every click that changed the
// match and after every StartMatch.
const NotificationMatchStateChange = "MATCH_STATE_CHANGE"

// MatchNotification represents a notification to be sent to the
// presentation layer.
type MatchNotification struct {
	Type      string
	SessionID string
	MatchID   string
	Timestamp time.Time
	View      MatchView
}

// NotificationHandler is a function that handles match notifications.
type NotificationHandler func(notification MatchNotification)

// EngineConfig controls dealing and bookkeeping for every session.
type EngineConfig struct {
	Deal            rules.DealConfig
	Seed            uint64 // 0 draws from entropy
	CheckInvariants bool
	RecordReplay    bool
	ReplayLimit     int
	MaxSessions     int // 0 means unlimited
	MessageLimit    int // 0 means unlimited
}

// DefaultEngineConfig returns the configuration used when none is given.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Deal: rules.DealConfig{
			TokensPerTeam: grid.Cells / 2,
			Health:        rules.StatRange{Min: 10, Max: 20},
			Attack:        rules.StatRange{Min: 3, Max: 8},
		},
		RecordReplay: true,
		ReplayLimit:  512,
		MessageLimit: 200,
	}
}

// MatchAnalytics summarizes what happened in a session's current match.
type MatchAnalytics struct {
	MatchID     string                        `json:"match_id"`
	Matches     int                           `json:"matches"` // matches started in this session
	Clicks      int                           `json:"clicks"`
	NoOps       int                           `json:"no_ops"`
	Transitions map[string]int                `json:"transitions"`
	Teams       map[string]watchers.TeamStats `json:"teams"`
	StartedAt   time.Time                     `json:"started_at"`
	LastClickAt time.Time                     `json:"last_click_at"`
}

// dispatch is what one click or start hands to subscribers.
type dispatch struct {
	events       []rules.Event
	notification MatchNotification
}

type session struct {
	mu        sync.Mutex
	id        string
	match     Match
	replay    *Replay
	watchers  *rules.WatcherRegistry
	messages  []MatchMessage
	analytics MatchAnalytics
}

// Engine owns one match per session and serializes clicks per session.
type Engine struct {
	logger              *zap.Logger
	config              EngineConfig
	mu                  sync.RWMutex
	sessions            map[string]*session
	notificationHandler NotificationHandler
	eventBus            *rules.EventBus

	shuffleMu sync.Mutex
	shuffler  rules.Shuffler

	pendingMu sync.Mutex
	pending   []dispatch
	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewEngine creates an engine and starts its dispatch goroutine; call
// Close to stop it. The deal configuration is validated on every
// StartMatch, not here.
func NewEngine(logger *zap.Logger, cfg EngineConfig) *Engine {
	e := &Engine{
		logger:   logger,
		config:   cfg,
		sessions: make(map[string]*session),
		eventBus: rules.NewEventBus(),
		shuffler: rules.NewShuffler(cfg.Seed),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go e.dispatchLoop()
	return e
}

// Close delivers what is still queued and stops the dispatch goroutine.
// It must not be called from a notification handler or event listener.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
	<-e.stopped
}

// SetNotificationHandler sets the handler for match notifications.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationHandler = handler
}

// Events returns the bus every match event is published on. Listeners
// run on the dispatch goroutine, in click order, before the notification
// of the same click.
func (e *Engine) Events() *rules.EventBus {
	return e.eventBus
}

// enqueue must be called with the session lock held, so that each
// session's dispatches keep the order of its clicks.
func (e *Engine) enqueue(sessionID string, view MatchView, events []rules.Event) {
	for i := range events {
		events[i].SessionID = sessionID
	}
	d := dispatch{
		events: events,
		notification: MatchNotification{
			Type:      NotificationMatchStateChange,
			SessionID: sessionID,
			MatchID:   view.MatchID,
			Timestamp: time.Now(),
			View:      view,
		},
	}

	e.pendingMu.Lock()
	e.pending = append(e.pending, d)
	e.pendingMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop is the only caller of listeners and the notification
// handler. Handlers may call back into the engine.
func (e *Engine) dispatchLoop() {
	defer close(e.stopped)
	for {
		select {
		case <-e.wake:
			e.drain()
		case <-e.done:
			e.drain()
			return
		}
	}
}

func (e *Engine) drain() {
	for {
		e.pendingMu.Lock()
		batch := e.pending
		e.pending = nil
		e.pendingMu.Unlock()
		if len(batch) == 0 {
			return
		}

		e.mu.RLock()
		handler := e.notificationHandler
		e.mu.RUnlock()

		for _, d := range batch {
			e.eventBus.PublishBatch(d.events)
			if handler != nil {
				handler(d.notification)
			}
		}
	}
}

// StartMatch deals a new match for the session, replacing any match in
// progress. The session's score carries over.
func (e *Engine) StartMatch(sessionID string) (MatchView, error) {
	if sessionID == "" {
		return MatchView{}, ErrSessionRequired
	}

	s, err := e.getOrCreateSession(sessionID)
	if err != nil {
		return MatchView{}, err
	}

	s.mu.Lock()
	score := s.match.State.Score
	e.shuffleMu.Lock()
	m, err := NewMatch(e.config.Deal, e.shuffler, score)
	e.shuffleMu.Unlock()
	if err != nil {
		s.mu.Unlock()
		if e.logger != nil {
			e.logger.Error("failed to start match",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
		return MatchView{}, fmt.Errorf("start match: %w", err)
	}

	now := time.Now()
	s.match = m
	s.messages = nil
	s.analytics = MatchAnalytics{
		MatchID:     m.State.ID,
		Matches:     s.analytics.Matches + 1,
		Transitions: make(map[string]int),
		StartedAt:   now,
	}
	s.watchers.ResetWatchers()
	s.replay = nil
	if e.config.RecordReplay {
		s.replay = NewReplay(m.State.ID, e.config.ReplayLimit)
		recordReplay(e.logger, s.replay, m, TransitionNone)
	}
	e.appendMessages(s, []MatchMessage{{
		Text:      fmt.Sprintf("Match started, %s moves first", m.State.CurrentTurn()),
		Kind:      "start",
		Timestamp: now,
	}})
	view := s.view()
	started := rules.NewEvent(rules.EventMatchStarted, m.State.ID, m.State.CurrentTurn(), board.NoToken)
	e.enqueue(sessionID, view, []rules.Event{started})
	s.mu.Unlock()

	if e.logger != nil {
		e.logger.Info("started match",
			zap.String("session_id", sessionID),
			zap.String("match_id", m.State.ID),
			zap.Int("score", score),
		)
	}

	return view, nil
}

// HandleCellClick applies one click to the session's match. Clicks that
// match no transition leave the match unchanged and return no error.
func (e *Engine) HandleCellClick(sessionID string, c grid.Cell) (MatchView, error) {
	if !c.InBounds() {
		return MatchView{}, fmt.Errorf("%w: %s", ErrCellOutOfBounds, c)
	}
	s, err := e.startedSession(sessionID)
	if err != nil {
		return MatchView{}, err
	}

	s.mu.Lock()
	next, out, err := Reduce(s.match, c)
	if err == nil && e.config.CheckInvariants {
		err = next.Board.CheckInvariants()
	}
	if err != nil {
		s.mu.Unlock()
		if e.logger != nil {
			e.logger.Error("click broke the board",
				zap.String("session_id", sessionID),
				zap.String("match_id", s.match.State.ID),
				zap.String("cell", c.String()),
				zap.Error(err),
			)
		}
		return MatchView{}, fmt.Errorf("click %s: %w", c, err)
	}

	s.match = next
	now := time.Now()
	s.analytics.Clicks++
	s.analytics.LastClickAt = now
	s.analytics.Transitions[out.Transition.String()]++
	if out.Transition == TransitionNone {
		s.analytics.NoOps++
	}

	changed := out.Transition != TransitionNone
	var events []rules.Event
	if changed {
		events = buildEvents(next, out)
		s.watchers.NotifyWatchersBatch(events)
		e.appendMessages(s, buildMessages(next, out, now))
		recordReplay(e.logger, s.replay, next, out.Transition)
	}
	view := s.view()
	if changed {
		e.enqueue(sessionID, view, events)
	}
	s.mu.Unlock()

	if e.logger != nil {
		e.logger.Debug("handled cell click",
			zap.String("session_id", sessionID),
			zap.String("match_id", next.State.ID),
			zap.String("cell", c.String()),
			zap.String("transition", out.Transition.String()),
			zap.String("next_turn", out.NextTurn.String()),
		)
		if out.MatchOver && out.Transition == TransitionAttack {
			e.logger.Info("match over",
				zap.String("session_id", sessionID),
				zap.String("match_id", next.State.ID),
				zap.String("winner", out.Winner.String()),
				zap.Int("score", next.State.Score),
			)
		}
	}

	return view, nil
}

// GetRenderableCell returns what may be shown for one cell.
func (e *Engine) GetRenderableCell(sessionID string, c grid.Cell) (CellView, error) {
	if !c.InBounds() {
		return CellView{}, fmt.Errorf("%w: %s", ErrCellOutOfBounds, c)
	}
	s, err := e.startedSession(sessionID)
	if err != nil {
		return CellView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return RenderCell(s.match, c), nil
}

// MatchView renders the session's whole match.
func (e *Engine) MatchView(sessionID string) (MatchView, error) {
	s, err := e.startedSession(sessionID)
	if err != nil {
		return MatchView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// Replay returns the recorded history of the session's current match,
// or nil when recording is disabled.
func (e *Engine) Replay(sessionID string) (*Replay, error) {
	s, err := e.startedSession(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replay, nil
}

// ReplayStep names a move of the replay cursor.
type ReplayStep string

const (
	ReplayStart    ReplayStep = "start"
	ReplayNext     ReplayStep = "next"
	ReplayPrevious ReplayStep = "previous"
	ReplaySkip     ReplayStep = "skip" // by Count
	ReplaySeek     ReplayStep = "seek" // to Count
	ReplayLast     ReplayStep = "last"
)

var (
	ErrUnknownReplayStep = errors.New("unknown replay step")
	ErrReplayEnd         = errors.New("no replay state there")
)

// ReplayFrame is one recorded position rendered like a live match.
type ReplayFrame struct {
	MatchID    string    `json:"match_id"`
	Index      int       `json:"index"`
	Size       int       `json:"size"`
	Transition string    `json:"transition"`
	View       MatchView `json:"view"`
}

// StepReplay moves the session's replay cursor and renders the state it
// lands on. The cursor is per session and survives until the next match.
func (e *Engine) StepReplay(sessionID string, step ReplayStep, count int) (ReplayFrame, error) {
	s, err := e.startedSession(sessionID)
	if err != nil {
		return ReplayFrame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.replay
	if r == nil {
		return ReplayFrame{}, ErrReplayDisabled
	}

	var snap *Snapshot
	switch step {
	case ReplayStart:
		snap = r.Start()
	case ReplayNext:
		snap = r.Next()
	case ReplayPrevious:
		snap = r.Previous()
	case ReplaySkip:
		snap = r.Skip(count)
	case ReplaySeek:
		snap = r.Seek(count)
	case ReplayLast:
		snap = r.Skip(r.Size())
	default:
		return ReplayFrame{}, fmt.Errorf("%w: %q", ErrUnknownReplayStep, step)
	}
	if snap == nil {
		return ReplayFrame{}, fmt.Errorf("%w: %s from %d of %d", ErrReplayEnd, step, r.Position(), r.Size())
	}

	m, err := snap.Match()
	if err != nil {
		return ReplayFrame{}, fmt.Errorf("restore replay state %d: %w", r.Position(), err)
	}
	return ReplayFrame{
		MatchID:    snap.MatchID,
		Index:      r.Position(),
		Size:       r.Size(),
		Transition: snap.Transition.String(),
		View:       BuildMatchView(m),
	}, nil
}

// MatchAnalytics returns a copy of the session's click counters.
func (e *Engine) MatchAnalytics(sessionID string) (MatchAnalytics, error) {
	s, err := e.startedSession(sessionID)
	if err != nil {
		return MatchAnalytics{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.analytics
	a.Transitions = make(map[string]int, len(s.analytics.Transitions))
	for k, v := range s.analytics.Transitions {
		a.Transitions[k] = v
	}
	a.Teams = make(map[string]watchers.TeamStats, len(board.Teams))
	for team, stats := range watchers.Summarize(s.watchers) {
		a.Teams[team.String()] = stats
	}
	return a, nil
}

// CloseSession drops the session and everything it holds.
func (e *Engine) CloseSession(sessionID string) {
	e.mu.Lock()
	_, existed := e.sessions[sessionID]
	delete(e.sessions, sessionID)
	e.mu.Unlock()

	if existed && e.logger != nil {
		e.logger.Debug("closed session", zap.String("session_id", sessionID))
	}
}

// SessionCount returns the number of live sessions.
func (e *Engine) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

func (e *Engine) getOrCreateSession(sessionID string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[sessionID]; ok {
		return s, nil
	}
	if e.config.MaxSessions > 0 && len(e.sessions) >= e.config.MaxSessions {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, e.config.MaxSessions)
	}
	s := &session{id: sessionID, watchers: watchers.NewMatchRegistry()}
	e.sessions[sessionID] = s
	return s, nil
}

// startedSession returns the session only once a match was dealt for it.
func (e *Engine) startedSession(sessionID string) (*session, error) {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %q", ErrMatchNotStarted, sessionID)
	}

	s.mu.Lock()
	started := s.match.Started()
	s.mu.Unlock()
	if !started {
		return nil, fmt.Errorf("%w: session %q", ErrMatchNotStarted, sessionID)
	}
	return s, nil
}

// appendMessages must be called with s.mu held.
func (e *Engine) appendMessages(s *session, msgs []MatchMessage) {
	s.messages = append(s.messages, msgs...)
	if limit := e.config.MessageLimit; limit > 0 && len(s.messages) > limit {
		s.messages = append([]MatchMessage(nil), s.messages[len(s.messages)-limit:]...)
	}
}

// view must be called with s.mu held.
func (s *session) view() MatchView {
	v := BuildMatchView(s.match)
	if len(s.messages) > 0 {
		v.Messages = append([]MatchMessage(nil), s.messages...)
	}
	return v
}
