package game

import (
	"fmt"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

// Transition names what a click did.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionReveal
	TransitionSelect
	TransitionDeselect
	TransitionReselect
	TransitionMove
	TransitionAttack
)

var transitionNames = map[Transition]string{
	TransitionNone:     "NONE",
	TransitionReveal:   "REVEAL",
	TransitionSelect:   "SELECT",
	TransitionDeselect: "DESELECT",
	TransitionReselect: "RESELECT",
	TransitionMove:     "MOVE",
	TransitionAttack:   "ATTACK",
}

func (t Transition) String() string {
	if name, ok := transitionNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TRANSITION_%d", int(t))
}

// EndsTurn reports whether the transition hands the turn over.
func (t Transition) EndsTurn() bool {
	return t == TransitionReveal || t == TransitionMove || t == TransitionAttack
}

// Outcome describes the transition a click produced.
type Outcome struct {
	Transition   Transition
	Cell         grid.Cell // clicked cell
	From         grid.Cell // selection before the click
	HadSelection bool
	Team         board.Team // team that acted

	// Deselected is set when a reveal dropped an existing selection.
	Deselected bool
	Revealed   []board.TokenID

	Mover    board.TokenID
	Attacker board.TokenID
	Defender board.Token // defender after the hit
	Damage   int
	Killed   bool

	NextTurn  board.Team
	MatchOver bool
	Winner    board.Team
}

// Reduce applies one cell click to a match and returns the resulting
// match. The input is never modified; no-op clicks return it unchanged.
// Clicks that match no transition are no-ops, not errors. A non-nil
// error means a board mutator refused a change, which only happens when
// the input already violated the board invariants.
func Reduce(m Match, c grid.Cell) (Match, Outcome, error) {
	out := Outcome{
		Transition: TransitionNone,
		Cell:       c,
		Team:       m.State.CurrentTurn(),
		Mover:      board.NoToken,
		Attacker:   board.NoToken,
		NextTurn:   m.State.CurrentTurn(),
		Winner:     m.State.Winner,
		MatchOver:  m.State.Over,
	}
	if !m.Started() || m.State.Over || m.State.Phase == rules.PhaseGameOver || !c.InBounds() {
		return m, out, nil
	}

	sel, hasSel := m.State.Selection()
	out.From, out.HadSelection = sel, hasSel
	tok, occupied := m.Board.TokenAtCell(c)
	own := occupied && tok.Team == m.State.CurrentTurn()

	if !hasSel {
		switch {
		case !occupied:
			return m, out, nil
		case !tok.Open:
			return reveal(m, c, out)
		case own:
			return selectToken(m, c), out.with(TransitionSelect), nil
		default:
			return m, out, nil
		}
	}

	// Closed-ness is checked before team so a closed own token is revealed.
	switch {
	case c == sel:
		return deselect(m), out.with(TransitionDeselect), nil
	case !occupied && grid.IsManhattanNeighbor(sel, c):
		return move(m, sel, c, out)
	case !occupied:
		return deselect(m), out.with(TransitionDeselect), nil
	case !tok.Open:
		out.Deselected = true
		return reveal(m, c, out)
	case own:
		return selectToken(m, c), out.with(TransitionReselect), nil
	case grid.IsManhattanNeighbor(sel, c):
		return attack(m, sel, c, out)
	default:
		return m, out, nil
	}
}

func (o Outcome) with(t Transition) Outcome {
	o.Transition = t
	return o
}

// Select and reselect only touch match state, so the board is shared.
func selectToken(m Match, c grid.Cell) Match {
	next := Match{State: m.State, Board: m.Board}
	next.State.selectCell(c)
	return next
}

func deselect(m Match) Match {
	next := Match{State: m.State, Board: m.Board}
	next.State.clearSelection()
	return next
}

// reveal opens the clicked token and every closed token around it.
// Tokens on the board are always alive, so no death check is needed.
func reveal(m Match, c grid.Cell, out Outcome) (Match, Outcome, error) {
	next := m.clone()

	targets := append([]grid.Cell{c}, grid.MooreNeighbors(c)...)
	for _, cell := range targets {
		t, ok := next.Board.TokenAtCell(cell)
		if !ok || t.Open {
			continue
		}
		if _, err := next.Board.UpdateToken(t.ID, board.TokenPatch{Open: true}); err != nil {
			return m, out, fmt.Errorf("reveal %s: %w", cell, err)
		}
		out.Revealed = append(out.Revealed, t.ID)
	}

	next.State.clearSelection()
	out.Transition = TransitionReveal
	out.NextTurn = next.State.Turns.EndTurn()
	return next, out, nil
}

func move(m Match, from, to grid.Cell, out Outcome) (Match, Outcome, error) {
	next := m.clone()

	id, err := next.Board.Vacate(from)
	if err != nil {
		return m, out, fmt.Errorf("move from %s: %w", from, err)
	}
	if id == board.NoToken {
		return m, out, fmt.Errorf("move from %s: selected cell is empty", from)
	}
	if err := next.Board.Place(id, to); err != nil {
		return m, out, fmt.Errorf("move to %s: %w", to, err)
	}

	next.State.clearSelection()
	out.Transition = TransitionMove
	out.Mover = id
	out.NextTurn = next.State.Turns.EndTurn()
	return next, out, nil
}

func attack(m Match, from, target grid.Cell, out Outcome) (Match, Outcome, error) {
	next := m.clone()

	attackerID := next.Board.TokenAt(from)
	defenderID := next.Board.TokenAt(target)
	result, err := resolveAttack(next.Board, attackerID, defenderID)
	if err != nil {
		return m, out, fmt.Errorf("attack %s -> %s: %w", from, target, err)
	}

	next.State.clearSelection()
	out.Transition = TransitionAttack
	out.Attacker = attackerID
	out.Defender = result.Defender
	out.Damage = result.Damage
	out.Killed = result.Killed
	out.NextTurn = next.State.Turns.EndTurn()

	if winner, over := evaluateOutcome(&next); over {
		out.MatchOver = true
		out.Winner = winner
	}
	return next, out, nil
}
