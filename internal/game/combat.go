package game

import (
	"fmt"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
)

// Attack returns the defender after taking one hit from the attacker.
// Health drops by the attacker's rate and never goes below zero; a
// defender left at zero is dead. The attacker is never touched.
func Attack(attacker, defender board.Token) board.Token {
	defender.Health -= attacker.AttackRate
	if defender.Health <= 0 {
		defender.Health = 0
		defender.Dead = true
	}
	return defender
}

// combatResult describes one resolved attack.
type combatResult struct {
	Defender board.Token
	Damage   int
	Killed   bool
}

// resolveAttack applies Attack to the board. A killed defender is marked
// dead and its cell vacated; the attacker stays where it is.
func resolveAttack(b *board.Board, attackerID, defenderID board.TokenID) (combatResult, error) {
	attacker, ok := b.Token(attackerID)
	if !ok {
		return combatResult{}, fmt.Errorf("attacker %d: %w", attackerID, board.ErrUnknownToken)
	}
	defender, ok := b.Token(defenderID)
	if !ok {
		return combatResult{}, fmt.Errorf("defender %d: %w", defenderID, board.ErrUnknownToken)
	}
	cell, onBoard := b.CellOf(defenderID)
	if !onBoard {
		return combatResult{}, fmt.Errorf("defender %d is not on the board", defenderID)
	}

	hit := Attack(attacker, defender)
	updated, err := b.UpdateToken(defenderID, board.TokenPatch{
		Health: &hit.Health,
		Dead:   hit.Dead,
	})
	if err != nil {
		return combatResult{}, fmt.Errorf("damage defender %d: %w", defenderID, err)
	}

	if updated.Dead {
		if _, err := b.Vacate(cell); err != nil {
			return combatResult{}, fmt.Errorf("remove dead defender %d: %w", defenderID, err)
		}
	}

	return combatResult{
		Defender: updated,
		Damage:   defender.Health - updated.Health,
		Killed:   updated.Dead,
	}, nil
}
