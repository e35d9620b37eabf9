package game

import (
	"time"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
)

// CellState is what the presentation layer may know about a cell.
type CellState string

const (
	CellEmpty  CellState = "empty"
	CellClosed CellState = "closed"
	CellOpen   CellState = "open"
)

// CellView is the renderable projection of one cell. Stats are only
// filled in for open tokens.
type CellView struct {
	Cell       grid.Cell `json:"cell"`
	State      CellState `json:"state"`
	Team       string    `json:"team,omitempty"`
	Health     int       `json:"health,omitempty"`
	MaxHealth  int       `json:"max_health,omitempty"`
	AttackRate int       `json:"attack_rate,omitempty"`
	Selected   bool      `json:"selected,omitempty"`
}

// RenderCell projects one cell of the match.
func RenderCell(m Match, c grid.Cell) CellView {
	view := CellView{Cell: c, State: CellEmpty}
	if !m.Started() {
		return view
	}
	t, ok := m.Board.TokenAtCell(c)
	if !ok {
		return view
	}
	if !t.Open {
		view.State = CellClosed
		return view
	}

	sel, hasSel := m.State.Selection()
	view.State = CellOpen
	view.Team = t.Team.String()
	view.Health = t.Health
	view.MaxHealth = t.MaxHealth
	view.AttackRate = t.AttackRate
	view.Selected = hasSel && sel == c
	return view
}

// MatchMessage is one line of the match log.
type MatchMessage struct {
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// MatchView is the full renderable state of a match.
type MatchView struct {
	MatchID     string         `json:"match_id"`
	Phase       string         `json:"phase"`
	CurrentTurn string         `json:"current_turn"`
	Turn        int            `json:"turn"`
	Selected    *grid.Cell     `json:"selected,omitempty"`
	Over        bool           `json:"over"`
	Winner      string         `json:"winner,omitempty"`
	Score       int            `json:"score"`
	Living      map[string]int `json:"living"`
	Cells       []CellView     `json:"cells"`
	Messages    []MatchMessage `json:"messages,omitempty"`
}

// BuildMatchView renders every cell plus the match state.
func BuildMatchView(m Match) MatchView {
	view := MatchView{
		MatchID:     m.State.ID,
		Phase:       m.State.Phase.String(),
		CurrentTurn: m.State.CurrentTurn().String(),
		Turn:        m.State.Turns.TurnNumber(),
		Over:        m.State.Over,
		Score:       m.State.Score,
		Living:      make(map[string]int, len(board.Teams)),
		Cells:       make([]CellView, 0, grid.Cells),
	}
	if m.State.Over {
		view.Winner = m.State.Winner.String()
	}
	if sel, ok := m.State.Selection(); ok {
		view.Selected = &sel
	}
	for _, team := range board.Teams {
		if m.Started() {
			view.Living[team.String()] = m.Board.LivingCount(team)
		}
	}
	for _, c := range grid.All() {
		view.Cells = append(view.Cells, RenderCell(m, c))
	}
	return view
}
