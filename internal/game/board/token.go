package board

import (
	"fmt"

	"github.com/thraizz/gridwar-server-go/internal/game/grid"
)

// TokenID identifies a token for the lifetime of a match.
type TokenID int

// NoToken marks an empty cell.
const NoToken TokenID = -1

// Team is one of the two sides of a match.
type Team int

const (
	TeamNone Team = iota
	TeamA
	TeamB
)

var teamNames = map[Team]string{
	TeamNone: "NONE",
	TeamA:    "A",
	TeamB:    "B",
}

func (t Team) String() string {
	if name, ok := teamNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TEAM_%d", int(t))
}

// Other returns the opposing team. TeamNone has no opponent.
func (t Team) Other() Team {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	default:
		return TeamNone
	}
}

// Valid reports whether t is a playable team.
func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// Teams lists the playable teams in turn order.
var Teams = [2]Team{TeamA, TeamB}

// Token is a single combatant. Stats stay hidden until Open is set.
type Token struct {
	ID         TokenID
	Team       Team
	Health     int
	MaxHealth  int
	AttackRate int
	Open       bool
	Dead       bool
	Position   grid.Cell
}

// Alive reports whether the token still has health.
func (t Token) Alive() bool {
	return !t.Dead
}

// TokenSpec describes a token before it is registered.
type TokenSpec struct {
	Team       Team
	Health     int
	AttackRate int
}

// TokenPatch is the set of changes UpdateToken may apply.
// Open and Dead only ever switch a flag on; Health may only go down.
type TokenPatch struct {
	Open   bool
	Dead   bool
	Health *int
}

// HealthPatch is a shorthand for a patch that only sets health.
func HealthPatch(health int) TokenPatch {
	return TokenPatch{Health: &health}
}
