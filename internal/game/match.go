package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

// FirstTeam opens every match.
const FirstTeam = board.TeamA

// MatchState is everything about a match that is not the board.
type MatchState struct {
	ID       string
	Phase    rules.Phase
	Turns    rules.TurnTracker
	Selected grid.Cell // meaningful only in PhaseSelected
	Over     bool
	Winner   board.Team // TeamNone until Over
	Score    int
}

// CurrentTurn returns the team whose action is expected next.
func (s MatchState) CurrentTurn() board.Team {
	return s.Turns.Active()
}

// Selection returns the selected cell, if any.
func (s MatchState) Selection() (grid.Cell, bool) {
	return s.Selected, s.Phase == rules.PhaseSelected
}

func (s *MatchState) selectCell(c grid.Cell) {
	s.Phase = rules.PhaseSelected
	s.Selected = c
}

func (s *MatchState) clearSelection() {
	s.Phase = rules.PhaseNoSelection
	s.Selected = grid.Cell{}
}

// Match pairs the match state with its board. A Match is a value: treat
// the board as read-only and derive new matches through Reduce.
type Match struct {
	State MatchState
	Board *board.Board
}

// Started reports whether the match was initialized.
func (m Match) Started() bool {
	return m.Board != nil
}

func (m Match) clone() Match {
	return Match{State: m.State, Board: m.Board.Clone()}
}

// NewMatch deals a fresh board. score carries the session's win counter
// over from the previous match.
func NewMatch(cfg rules.DealConfig, s rules.Shuffler, score int) (Match, error) {
	placements, err := rules.Deal(cfg, s)
	if err != nil {
		return Match{}, fmt.Errorf("deal tokens: %w", err)
	}

	b := board.New()
	for _, p := range placements {
		id, err := b.Register(p.Spec)
		if err != nil {
			return Match{}, fmt.Errorf("register token: %w", err)
		}
		if err := b.Place(id, p.Cell); err != nil {
			return Match{}, fmt.Errorf("place token %d: %w", id, err)
		}
	}

	return Match{
		State: MatchState{
			ID:     uuid.NewString(),
			Phase:  rules.PhaseNoSelection,
			Turns:  rules.NewTurnTracker(FirstTeam),
			Winner: board.TeamNone,
			Score:  score,
		},
		Board: b,
	}, nil
}
