package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

// matchBuilder lays tokens out by hand for reducer scenarios.
type matchBuilder struct {
	t     *testing.T
	board *board.Board
	state MatchState
}

// TokenSetup defines the properties of a hand-placed token.
type TokenSetup struct {
	Cell   grid.Cell
	Team   board.Team
	Health int
	Attack int
	Open   bool
}

func newTestMatch(t *testing.T) *matchBuilder {
	t.Helper()
	return &matchBuilder{
		t:     t,
		board: board.New(),
		state: MatchState{
			ID:     "test-match",
			Phase:  rules.PhaseNoSelection,
			Turns:  rules.NewTurnTracker(FirstTeam),
			Winner: board.TeamNone,
		},
	}
}

// Token registers and places one token.
func (mb *matchBuilder) Token(spec TokenSetup) board.TokenID {
	mb.t.Helper()
	id, err := mb.board.Register(board.TokenSpec{Team: spec.Team, Health: spec.Health, AttackRate: spec.Attack})
	require.NoError(mb.t, err)
	if spec.Open {
		_, err = mb.board.UpdateToken(id, board.TokenPatch{Open: true})
		require.NoError(mb.t, err)
	}
	require.NoError(mb.t, mb.board.Place(id, spec.Cell))
	return id
}

// Open places an open token with the given stats.
func (mb *matchBuilder) Open(team board.Team, c grid.Cell, health, attack int) board.TokenID {
	return mb.Token(TokenSetup{Cell: c, Team: team, Health: health, Attack: attack, Open: true})
}

// Closed places a closed token with default stats.
func (mb *matchBuilder) Closed(team board.Team, c grid.Cell) board.TokenID {
	return mb.Token(TokenSetup{Cell: c, Team: team, Health: 10, Attack: 3})
}

// Turn sets the team to act.
func (mb *matchBuilder) Turn(team board.Team) *matchBuilder {
	mb.state.Turns = rules.NewTurnTracker(team)
	return mb
}

// Select starts the match with c already selected.
func (mb *matchBuilder) Select(c grid.Cell) *matchBuilder {
	mb.state.selectCell(c)
	return mb
}

// Build returns the match after checking the layout is consistent.
func (mb *matchBuilder) Build() Match {
	mb.t.Helper()
	require.NoError(mb.t, mb.board.CheckInvariants())
	return Match{State: mb.state, Board: mb.board}
}

// identityShuffler leaves the deal in registration order: TeamA fills
// rows 0-3 and TeamB rows 4-7.
type identityShuffler struct{}

func (identityShuffler) Shuffle(int, func(i, j int)) {}

func (identityShuffler) IntN(n int) int { return n - 1 }

func defaultDeal() rules.DealConfig {
	return DefaultEngineConfig().Deal
}

// reduce applies a click and fails the test on error.
func reduce(t *testing.T, m Match, c grid.Cell) (Match, Outcome) {
	t.Helper()
	next, out, err := Reduce(m, c)
	require.NoError(t, err)
	require.NoError(t, next.Board.CheckInvariants())
	return next, out
}

func cell(row, col int) grid.Cell {
	return grid.Cell{Row: row, Col: col}
}
