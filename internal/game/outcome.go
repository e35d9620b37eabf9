package game

import (
	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

// evaluateOutcome ends the match once a team has no living tokens.
// It must run after every combat resolution so no caller ever sees an
// eliminated team on an unfinished match.
func evaluateOutcome(m *Match) (board.Team, bool) {
	if m.State.Over {
		return m.State.Winner, true
	}
	for _, team := range board.Teams {
		if m.Board.LivingCount(team) > 0 {
			continue
		}
		m.State.Over = true
		m.State.Winner = team.Other()
		m.State.Score++
		m.State.Phase = rules.PhaseGameOver
		m.State.Selected = grid.Cell{}
		return m.State.Winner, true
	}
	return board.TeamNone, false
}
