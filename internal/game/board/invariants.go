package board

import (
	"errors"
	"fmt"

	"github.com/thraizz/gridwar-server-go/internal/game/grid"
)

// ErrInvariant wraps every violation reported by CheckInvariants.
var ErrInvariant = errors.New("board invariant violated")

// CheckInvariants verifies the cell/token bijection and per-token bounds:
//   - every occupied cell names a known, living token whose Position is that cell
//   - no token id appears in two cells
//   - every living token occupies exactly one cell
//   - 0 <= Health <= MaxHealth, Dead iff Health == 0, Dead implies Open
//
// A non-nil error is a programming error in whatever mutated the board.
func (b *Board) CheckInvariants() error {
	seen := make(map[TokenID]grid.Cell, len(b.tokens))

	for r := range b.cells {
		for c := range b.cells[r] {
			id := b.cells[r][c]
			if id == NoToken {
				continue
			}
			cell := grid.Cell{Row: r, Col: c}
			if !b.known(id) {
				return fmt.Errorf("%w: %s holds unknown token %d", ErrInvariant, cell, id)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: token %d at both %s and %s", ErrInvariant, id, prev, cell)
			}
			seen[id] = cell

			t := b.tokens[id]
			if !t.Alive() {
				return fmt.Errorf("%w: dead token %d still at %s", ErrInvariant, id, cell)
			}
			if t.Position != cell || !b.placed[id] {
				return fmt.Errorf("%w: token %d recorded at %s but found at %s", ErrInvariant, id, t.Position, cell)
			}
		}
	}

	for _, t := range b.tokens {
		if t.Health < 0 || t.Health > t.MaxHealth {
			return fmt.Errorf("%w: token %d health %d not in [0,%d]", ErrInvariant, t.ID, t.Health, t.MaxHealth)
		}
		if t.Dead != (t.Health == 0) {
			return fmt.Errorf("%w: token %d dead=%t with health %d", ErrInvariant, t.ID, t.Dead, t.Health)
		}
		if t.Dead && !t.Open {
			return fmt.Errorf("%w: token %d died while closed", ErrInvariant, t.ID)
		}
		_, onBoard := seen[t.ID]
		if t.Alive() && !onBoard {
			return fmt.Errorf("%w: living token %d is not on the board", ErrInvariant, t.ID)
		}
		if t.Dead && b.placed[t.ID] {
			return fmt.Errorf("%w: dead token %d still marked placed", ErrInvariant, t.ID)
		}
	}

	return nil
}
