package board

import (
	"errors"
	"fmt"

	"github.com/thraizz/gridwar-server-go/internal/game/grid"
)

var (
	ErrOutOfBounds    = errors.New("cell out of bounds")
	ErrUnknownToken   = errors.New("unknown token")
	ErrCellOccupied   = errors.New("cell occupied")
	ErrTokenPlaced    = errors.New("token already on the board")
	ErrTokenDead      = errors.New("token is dead")
	ErrHealthIncrease = errors.New("health cannot increase")
	ErrInvalidHealth  = errors.New("health out of range")
	ErrInvalidSpec    = errors.New("invalid token spec")
)

// Board is the occupancy grid plus the token registry. Each cell holds
// NoToken or the id of exactly one living token. Dead tokens are removed
// from the grid but stay in the registry.
type Board struct {
	cells  [grid.Size][grid.Size]TokenID
	tokens []Token
	placed []bool
}

// New returns an empty board with no registered tokens.
func New() *Board {
	b := &Board{
		tokens: make([]Token, 0, grid.Cells),
		placed: make([]bool, 0, grid.Cells),
	}
	for r := range b.cells {
		for c := range b.cells[r] {
			b.cells[r][c] = NoToken
		}
	}
	return b
}

// Clone returns a deep copy. Reducers mutate clones only.
func (b *Board) Clone() *Board {
	out := &Board{
		cells:  b.cells,
		tokens: make([]Token, len(b.tokens)),
		placed: make([]bool, len(b.placed)),
	}
	copy(out.tokens, b.tokens)
	copy(out.placed, b.placed)
	return out
}

// Register adds a closed, living token to the registry without placing it.
func (b *Board) Register(spec TokenSpec) (TokenID, error) {
	if !spec.Team.Valid() {
		return NoToken, fmt.Errorf("%w: team %s", ErrInvalidSpec, spec.Team)
	}
	if spec.Health < 1 || spec.AttackRate < 0 {
		return NoToken, fmt.Errorf("%w: health=%d attack=%d", ErrInvalidSpec, spec.Health, spec.AttackRate)
	}
	id := TokenID(len(b.tokens))
	b.tokens = append(b.tokens, Token{
		ID:         id,
		Team:       spec.Team,
		Health:     spec.Health,
		MaxHealth:  spec.Health,
		AttackRate: spec.AttackRate,
	})
	b.placed = append(b.placed, false)
	return id, nil
}

// TokenAt returns the id at cell, or NoToken.
func (b *Board) TokenAt(c grid.Cell) TokenID {
	if !c.InBounds() {
		return NoToken
	}
	return b.cells[c.Row][c.Col]
}

// CellOf returns the cell a token occupies. ok is false for dead or
// unplaced tokens.
func (b *Board) CellOf(id TokenID) (grid.Cell, bool) {
	if !b.known(id) || !b.placed[id] {
		return grid.Cell{}, false
	}
	return b.tokens[id].Position, true
}

// Token returns a copy of the token record.
func (b *Board) Token(id TokenID) (Token, bool) {
	if !b.known(id) {
		return Token{}, false
	}
	return b.tokens[id], true
}

// TokenAtCell returns the token occupying c.
func (b *Board) TokenAtCell(c grid.Cell) (Token, bool) {
	id := b.TokenAt(c)
	if id == NoToken {
		return Token{}, false
	}
	return b.Token(id)
}

// Tokens returns a copy of the whole registry, dead tokens included.
func (b *Board) Tokens() []Token {
	out := make([]Token, len(b.tokens))
	copy(out, b.tokens)
	return out
}

// Len is the number of registered tokens.
func (b *Board) Len() int {
	return len(b.tokens)
}

// Occupied counts the cells holding a token.
func (b *Board) Occupied() int {
	n := 0
	for r := range b.cells {
		for c := range b.cells[r] {
			if b.cells[r][c] != NoToken {
				n++
			}
		}
	}
	return n
}

// LivingCount counts living tokens of a team.
func (b *Board) LivingCount(team Team) int {
	n := 0
	for _, t := range b.tokens {
		if t.Team == team && t.Alive() {
			n++
		}
	}
	return n
}

// Place puts a living, unplaced token on an empty cell.
func (b *Board) Place(id TokenID, c grid.Cell) error {
	if !c.InBounds() {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, c)
	}
	if !b.known(id) {
		return fmt.Errorf("%w: %d", ErrUnknownToken, id)
	}
	if !b.tokens[id].Alive() {
		return fmt.Errorf("%w: %d", ErrTokenDead, id)
	}
	if b.placed[id] {
		return fmt.Errorf("%w: %d at %s", ErrTokenPlaced, id, b.tokens[id].Position)
	}
	if occupant := b.cells[c.Row][c.Col]; occupant != NoToken {
		return fmt.Errorf("%w: %s holds %d", ErrCellOccupied, c, occupant)
	}

	b.cells[c.Row][c.Col] = id
	b.tokens[id].Position = c
	b.placed[id] = true
	return nil
}

// Vacate clears a cell and returns the id that was there.
// Vacating an empty cell is a no-op returning NoToken.
func (b *Board) Vacate(c grid.Cell) (TokenID, error) {
	if !c.InBounds() {
		return NoToken, fmt.Errorf("%w: %s", ErrOutOfBounds, c)
	}
	id := b.cells[c.Row][c.Col]
	if id == NoToken {
		return NoToken, nil
	}
	b.cells[c.Row][c.Col] = NoToken
	b.placed[id] = false
	return id, nil
}

// UpdateToken applies a patch. Flags may only be raised and health may
// only drop; anything else is rejected without changing the token.
func (b *Board) UpdateToken(id TokenID, patch TokenPatch) (Token, error) {
	if !b.known(id) {
		return Token{}, fmt.Errorf("%w: %d", ErrUnknownToken, id)
	}
	t := b.tokens[id]

	if patch.Health != nil {
		h := *patch.Health
		if h < 0 || h > t.MaxHealth {
			return t, fmt.Errorf("%w: %d not in [0,%d]", ErrInvalidHealth, h, t.MaxHealth)
		}
		if h > t.Health {
			return t, fmt.Errorf("%w: %d -> %d", ErrHealthIncrease, t.Health, h)
		}
		t.Health = h
	}
	if patch.Open {
		t.Open = true
	}
	if patch.Dead {
		t.Dead = true
	}

	b.tokens[id] = t
	return t, nil
}

func (b *Board) known(id TokenID) bool {
	return id >= 0 && int(id) < len(b.tokens)
}
