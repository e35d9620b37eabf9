package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
	"github.com/thraizz/gridwar-server-go/internal/game/watchers"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.Seed = 11
	cfg.CheckInvariants = true
	engine := NewEngine(zaptest.NewLogger(t), cfg)
	t.Cleanup(engine.Close)
	return engine
}

func TestEngineStartMatch(t *testing.T) {
	engine := newTestEngine(t)

	view, err := engine.StartMatch("s1")
	require.NoError(t, err)
	assert.NotEmpty(t, view.MatchID)
	assert.Equal(t, "NO_SELECTION", view.Phase)
	assert.Equal(t, "A", view.CurrentTurn)
	assert.Equal(t, 0, view.Score)
	require.Len(t, view.Cells, grid.Cells)
	for _, c := range view.Cells {
		assert.Equal(t, CellClosed, c.State)
	}
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "start", view.Messages[0].Kind)
	assert.Equal(t, 1, engine.SessionCount())
}

func TestEngineStartMatchRequiresSession(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.StartMatch("")
	assert.ErrorIs(t, err, ErrSessionRequired)
}

func TestEngineStartMatchRejectsBadDeal(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Deal.Health = rules.StatRange{Min: 5, Max: 1}
	engine := NewEngine(zaptest.NewLogger(t), cfg)
	t.Cleanup(engine.Close)

	_, err := engine.StartMatch("s1")
	assert.Error(t, err)
	_, err = engine.MatchView("s1")
	assert.ErrorIs(t, err, ErrMatchNotStarted)
}

func TestEngineRequiresStartedMatch(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.HandleCellClick("nope", cell(0, 0))
	assert.ErrorIs(t, err, ErrMatchNotStarted)
	_, err = engine.GetRenderableCell("nope", cell(0, 0))
	assert.ErrorIs(t, err, ErrMatchNotStarted)
	_, err = engine.MatchView("nope")
	assert.ErrorIs(t, err, ErrMatchNotStarted)
	_, err = engine.Replay("nope")
	assert.ErrorIs(t, err, ErrMatchNotStarted)
	_, err = engine.MatchAnalytics("nope")
	assert.ErrorIs(t, err, ErrMatchNotStarted)
}

func TestEngineRejectsOutOfBoundsCells(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.StartMatch("s1")
	require.NoError(t, err)

	_, err = engine.HandleCellClick("s1", cell(8, 0))
	assert.ErrorIs(t, err, ErrCellOutOfBounds)
	_, err = engine.GetRenderableCell("s1", cell(0, -1))
	assert.ErrorIs(t, err, ErrCellOutOfBounds)
}

func TestEngineRevealClick(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.StartMatch("s1")
	require.NoError(t, err)

	var mu sync.Mutex
	var revealed, turns int
	var sessions []string
	engine.Events().Subscribe(func(ev rules.Event) {
		mu.Lock()
		defer mu.Unlock()
		sessions = append(sessions, ev.SessionID)
		switch ev.Type {
		case rules.EventTokenRevealed:
			revealed++
		case rules.EventTurnChanged:
			turns++
		}
	})

	view, err := engine.HandleCellClick("s1", cell(3, 3))
	require.NoError(t, err)
	assert.Equal(t, "B", view.CurrentTurn)
	assert.Equal(t, 2, view.Turn)

	open := 0
	for _, c := range view.Cells {
		if c.State == CellOpen {
			open++
			assert.True(t, grid.IsMooreNeighbor(cell(3, 3), c.Cell) || c.Cell == cell(3, 3))
		}
	}
	assert.Equal(t, 9, open)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return turns == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, 9, revealed)
	for _, id := range sessions {
		assert.Equal(t, "s1", id)
	}
	mu.Unlock()

	rc, err := engine.GetRenderableCell("s1", cell(3, 3))
	require.NoError(t, err)
	assert.Equal(t, CellOpen, rc.State)
	assert.NotZero(t, rc.Health)

	require.Len(t, view.Messages, 2)
	assert.Equal(t, "reveal", view.Messages[1].Kind)
}

func TestEngineNoOpClickIsNotRecorded(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.StartMatch("s1")
	require.NoError(t, err)

	// Reveal a corner, then TeamB clicks a TeamA token it cannot select.
	_, err = engine.HandleCellClick("s1", cell(0, 0))
	require.NoError(t, err)
	view, err := engine.MatchView("s1")
	require.NoError(t, err)

	var foreign grid.Cell
	found := false
	for _, c := range view.Cells {
		if c.State == CellOpen && c.Team == "A" {
			foreign, found = c.Cell, true
			break
		}
	}
	if !found {
		t.Skip("seed dealt no TeamA token into the corner")
	}

	after, err := engine.HandleCellClick("s1", foreign)
	require.NoError(t, err)
	assert.Equal(t, view.Turn, after.Turn)
	assert.Equal(t, view.Phase, after.Phase)

	replay, err := engine.Replay("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, replay.Size())

	stats, err := engine.MatchAnalytics("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Clicks)
	assert.Equal(t, 1, stats.NoOps)
	assert.Equal(t, 1, stats.Transitions["REVEAL"])
	assert.Equal(t, 1, stats.Matches)
	assert.Equal(t, 4, stats.Teams["A"].Revealed)
	assert.Zero(t, stats.Teams["B"].Revealed)
}

func TestEngineNotifiesOnChange(t *testing.T) {
	engine := newTestEngine(t)
	notes := make(chan MatchNotification, 4)
	engine.SetNotificationHandler(func(n MatchNotification) {
		notes <- n
	})

	_, err := engine.StartMatch("s1")
	require.NoError(t, err)

	select {
	case n := <-notes:
		assert.Equal(t, NotificationMatchStateChange, n.Type)
		assert.Equal(t, "s1", n.SessionID)
		assert.NotEmpty(t, n.MatchID)
	case <-time.After(time.Second):
		t.Fatal("no notification after StartMatch")
	}

	_, err = engine.HandleCellClick("s1", cell(4, 4))
	require.NoError(t, err)
	select {
	case n := <-notes:
		assert.Equal(t, "B", n.View.CurrentTurn)
	case <-time.After(time.Second):
		t.Fatal("no notification after reveal")
	}
}

func TestEngineScoreSurvivesRestart(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.StartMatch("s1")
	require.NoError(t, err)

	// Swap in a match one hit from the end.
	mb := newTestMatch(t)
	mb.Open(board.TeamA, cell(0, 0), 10, 9)
	mb.Open(board.TeamB, cell(0, 1), 4, 3)
	engine.mu.RLock()
	s := engine.sessions["s1"]
	engine.mu.RUnlock()
	s.mu.Lock()
	s.match = mb.Select(cell(0, 0)).Build()
	s.mu.Unlock()

	view, err := engine.HandleCellClick("s1", cell(0, 1))
	require.NoError(t, err)
	assert.True(t, view.Over)
	assert.Equal(t, "A", view.Winner)
	assert.Equal(t, 1, view.Score)
	assert.Equal(t, "game_over", view.Messages[len(view.Messages)-1].Kind)

	stats, err := engine.MatchAnalytics("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Teams["B"].Lost)
	assert.Equal(t, 4, stats.Teams["A"].Damage)

	view, err = engine.HandleCellClick("s1", cell(0, 0))
	require.NoError(t, err)
	assert.True(t, view.Over, "clicks after the end change nothing")

	restarted, err := engine.StartMatch("s1")
	require.NoError(t, err)
	assert.False(t, restarted.Over)
	assert.Equal(t, 1, restarted.Score)
	assert.NotEqual(t, view.MatchID, restarted.MatchID)

	stats, err = engine.MatchAnalytics("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Matches)
	assert.Zero(t, stats.Clicks)
	assert.Equal(t, watchers.TeamStats{}, stats.Teams["A"])
	assert.Equal(t, watchers.TeamStats{}, stats.Teams["B"])
}

func TestEngineNotificationsKeepClickOrder(t *testing.T) {
	engine := newTestEngine(t)

	var mu sync.Mutex
	var turns []int
	engine.SetNotificationHandler(func(n MatchNotification) {
		mu.Lock()
		defer mu.Unlock()
		turns = append(turns, n.View.Turn)
	})

	view, err := engine.StartMatch("s1")
	require.NoError(t, err)

	// Every click on a closed cell is a reveal, and every reveal ends the turn.
	clicks := 0
	for _, c := range view.Cells {
		rc, err := engine.GetRenderableCell("s1", c.Cell)
		require.NoError(t, err)
		if rc.State != CellClosed {
			continue
		}
		_, err = engine.HandleCellClick("s1", c.Cell)
		require.NoError(t, err)
		clicks++
	}
	require.Greater(t, clicks, 1)

	engine.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, turns, clicks+1)
	for i := 1; i < len(turns); i++ {
		assert.Equal(t, turns[i-1]+1, turns[i], "notification %d arrived out of order", i)
	}
}

func TestEngineCloseDeliversQueued(t *testing.T) {
	engine := newTestEngine(t)
	var mu sync.Mutex
	var started int
	engine.Events().SubscribeTyped(rules.EventMatchStarted, func(rules.Event) {
		mu.Lock()
		defer mu.Unlock()
		started++
	})

	for i := 0; i < 3; i++ {
		_, err := engine.StartMatch("s1")
		require.NoError(t, err)
	}
	engine.Close()
	engine.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, started)
}

func TestEngineStepReplay(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.StartMatch("s1")
	require.NoError(t, err)

	_, err = engine.HandleCellClick("s1", cell(0, 0))
	require.NoError(t, err)
	live, err := engine.HandleCellClick("s1", cell(7, 7))
	require.NoError(t, err)

	frame, err := engine.StepReplay("s1", ReplayStart, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Index)
	assert.Equal(t, 3, frame.Size)
	assert.Equal(t, "NONE", frame.Transition)
	assert.Equal(t, 1, frame.View.Turn)
	for _, c := range frame.View.Cells {
		assert.Equal(t, CellClosed, c.State)
	}

	frame, err = engine.StepReplay("s1", ReplayNext, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Index)
	assert.Equal(t, "REVEAL", frame.Transition)
	assert.Equal(t, CellOpen, frame.View.Cells[cell(0, 0).Index()].State)
	assert.Equal(t, CellClosed, frame.View.Cells[cell(7, 7).Index()].State)

	frame, err = engine.StepReplay("s1", ReplayLast, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Index)
	assert.Equal(t, live.Turn, frame.View.Turn)
	assert.Equal(t, live.MatchID, frame.MatchID)

	_, err = engine.StepReplay("s1", ReplayNext, 0)
	assert.ErrorIs(t, err, ErrReplayEnd)

	frame, err = engine.StepReplay("s1", ReplaySkip, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Index)

	frame, err = engine.StepReplay("s1", ReplaySeek, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Index)
	frame, err = engine.StepReplay("s1", ReplayPrevious, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Index)

	_, err = engine.StepReplay("s1", ReplaySeek, 9)
	assert.ErrorIs(t, err, ErrReplayEnd)
	_, err = engine.StepReplay("s1", "rewind", 0)
	assert.ErrorIs(t, err, ErrUnknownReplayStep)
	_, err = engine.StepReplay("nope", ReplayStart, 0)
	assert.ErrorIs(t, err, ErrMatchNotStarted)
}

func TestEngineMaxSessions(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MaxSessions = 1
	engine := NewEngine(zaptest.NewLogger(t), cfg)
	t.Cleanup(engine.Close)

	_, err := engine.StartMatch("s1")
	require.NoError(t, err)
	_, err = engine.StartMatch("s2")
	assert.ErrorIs(t, err, ErrTooManySessions)

	// Restarting an existing session is always allowed.
	_, err = engine.StartMatch("s1")
	require.NoError(t, err)

	engine.CloseSession("s1")
	assert.Zero(t, engine.SessionCount())
	_, err = engine.StartMatch("s2")
	require.NoError(t, err)
}

func TestEngineReplayDisabled(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.RecordReplay = false
	engine := NewEngine(zaptest.NewLogger(t), cfg)
	t.Cleanup(engine.Close)

	_, err := engine.StartMatch("s1")
	require.NoError(t, err)
	_, err = engine.HandleCellClick("s1", cell(2, 2))
	require.NoError(t, err)

	replay, err := engine.Replay("s1")
	require.NoError(t, err)
	assert.Nil(t, replay)
	_, err = engine.StepReplay("s1", ReplayStart, 0)
	assert.ErrorIs(t, err, ErrReplayDisabled)
}

func TestEngineConcurrentClicks(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.StartMatch("s1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c := grid.FromIndex((g*7 + i*13) % grid.Cells)
				_, err := engine.HandleCellClick("s1", c)
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	stats, err := engine.MatchAnalytics("s1")
	require.NoError(t, err)
	assert.Equal(t, 400, stats.Clicks)

	replay, err := engine.Replay("s1")
	require.NoError(t, err)
	last, err := replay.Last().Match()
	require.NoError(t, err)
	require.NoError(t, last.Board.CheckInvariants())
}
