package rules

import (
	"fmt"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
)

// Phase is the interaction state of a match.
type Phase int

const (
	PhaseNoSelection Phase = iota
	PhaseSelected
	PhaseGameOver
)

var phaseNames = map[Phase]string{
	PhaseNoSelection: "NO_SELECTION",
	PhaseSelected:    "SELECTED",
	PhaseGameOver:    "GAME_OVER",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// TurnTracker tracks whose action is expected next and how many turns
// have been completed. It is a plain value so match snapshots copy it.
type TurnTracker struct {
	active     board.Team
	turnNumber int
}

// NewTurnTracker starts at turn 1 with first to act.
func NewTurnTracker(first board.Team) TurnTracker {
	return TurnTracker{
		active:     first,
		turnNumber: 1,
	}
}

// Active returns the team whose turn it is.
func (tt TurnTracker) Active() board.Team {
	return tt.active
}

// TurnNumber returns the current turn number (1-based).
func (tt TurnTracker) TurnNumber() int {
	return tt.turnNumber
}

// EndTurn hands the turn to the other team and returns it.
func (tt *TurnTracker) EndTurn() board.Team {
	tt.active = tt.active.Other()
	tt.turnNumber++
	return tt.active
}
