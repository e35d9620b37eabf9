package rules

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
)

// Shuffler permutes n items through swap.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// fisherYates is a PCG-backed Fisher–Yates shuffler.
type fisherYates struct {
	rng *rand.Rand
}

// NewShuffler returns a uniform shuffler. A zero seed draws from entropy.
func NewShuffler(seed uint64) Shuffler {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &fisherYates{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Shuffle walks from the last slot down, swapping each with a uniformly
// chosen earlier-or-equal slot, so all n! orders are equally likely.
func (f *fisherYates) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := f.rng.IntN(i + 1)
		swap(i, j)
	}
}

// IntN draws from [0, n). Used for stat rolls.
func (f *fisherYates) IntN(n int) int {
	return f.rng.IntN(n)
}

// StatRange is an inclusive [Min, Max] range.
type StatRange struct {
	Min int
	Max int
}

// Validate checks that the range is non-empty and positive.
func (r StatRange) Validate() error {
	if r.Min < 1 {
		return fmt.Errorf("min must be >= 1, got %d", r.Min)
	}
	if r.Max < r.Min {
		return fmt.Errorf("max %d below min %d", r.Max, r.Min)
	}
	return nil
}

// DealConfig controls how a match's tokens are generated.
type DealConfig struct {
	TokensPerTeam int
	Health        StatRange
	Attack        StatRange
}

// ErrBoardNotFilled is returned when the token count does not match the board.
var ErrBoardNotFilled = errors.New("token count must fill the board")

// Placement is one dealt token and the cell it starts on.
type Placement struct {
	Spec board.TokenSpec
	Cell grid.Cell
}

type intner interface {
	IntN(n int) int
}

// Deal rolls stats for every token and shuffles them across the board.
// The shuffler is consulted once for the whole board.
func Deal(cfg DealConfig, s Shuffler) ([]Placement, error) {
	if cfg.TokensPerTeam*len(board.Teams) != grid.Cells {
		return nil, fmt.Errorf("%w: %d per team on %d cells", ErrBoardNotFilled, cfg.TokensPerTeam, grid.Cells)
	}
	if err := cfg.Health.Validate(); err != nil {
		return nil, fmt.Errorf("health range: %w", err)
	}
	if err := cfg.Attack.Validate(); err != nil {
		return nil, fmt.Errorf("attack range: %w", err)
	}

	var roll func(r StatRange) int
	if rn, ok := s.(intner); ok {
		roll = func(r StatRange) int { return r.Min + rn.IntN(r.Max-r.Min+1) }
	} else {
		fallback := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		roll = func(r StatRange) int { return r.Min + fallback.IntN(r.Max-r.Min+1) }
	}

	specs := make([]board.TokenSpec, 0, grid.Cells)
	for _, team := range board.Teams {
		for i := 0; i < cfg.TokensPerTeam; i++ {
			specs = append(specs, board.TokenSpec{
				Team:       team,
				Health:     roll(cfg.Health),
				AttackRate: roll(cfg.Attack),
			})
		}
	}

	s.Shuffle(len(specs), func(i, j int) { specs[i], specs[j] = specs[j], specs[i] })

	placements := make([]Placement, len(specs))
	for i, spec := range specs {
		placements[i] = Placement{Spec: spec, Cell: grid.FromIndex(i)}
	}
	return placements, nil
}
