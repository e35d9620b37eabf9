package rules

import (
	"testing"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
)

func TestTurnTrackerAlternates(t *testing.T) {
	tt := NewTurnTracker(board.TeamA)

	if tt.Active() != board.TeamA {
		t.Fatalf("expected team A to open, got %s", tt.Active())
	}
	if tt.TurnNumber() != 1 {
		t.Fatalf("expected turn 1, got %d", tt.TurnNumber())
	}

	expected := []board.Team{board.TeamB, board.TeamA, board.TeamB, board.TeamA}
	for i, want := range expected {
		got := tt.EndTurn()
		if got != want {
			t.Fatalf("turn %d: expected %s, got %s", i+2, want, got)
		}
		if tt.TurnNumber() != i+2 {
			t.Fatalf("expected turn number %d, got %d", i+2, tt.TurnNumber())
		}
	}
}

func TestTurnTrackerCopiesAreIndependent(t *testing.T) {
	tt := NewTurnTracker(board.TeamB)
	snapshot := tt

	tt.EndTurn()

	if snapshot.Active() != board.TeamB || snapshot.TurnNumber() != 1 {
		t.Fatalf("snapshot changed: %s turn %d", snapshot.Active(), snapshot.TurnNumber())
	}
	if tt.Active() != board.TeamA {
		t.Fatalf("expected team A after end turn, got %s", tt.Active())
	}
}

func TestPhaseNames(t *testing.T) {
	cases := map[Phase]string{
		PhaseNoSelection: "NO_SELECTION",
		PhaseSelected:    "SELECTED",
		PhaseGameOver:    "GAME_OVER",
		Phase(42):        "PHASE_42",
	}
	for phase, want := range cases {
		if phase.String() != want {
			t.Fatalf("expected %s, got %s", want, phase.String())
		}
	}
}
