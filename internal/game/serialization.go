package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/grid"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

// Snapshot is a self-contained copy of a match at one point in time.
type Snapshot struct {
	MatchID    string
	Phase      rules.Phase
	Turns      rules.TurnTracker
	Selected   grid.Cell
	Over       bool
	Winner     board.Team
	Score      int
	Tokens     []board.Token
	Cells      [grid.Cells]board.TokenID
	Transition Transition
	Timestamp  time.Time
}

// TakeSnapshot copies a match. transition records what produced it.
func TakeSnapshot(m Match, transition Transition) *Snapshot {
	s := &Snapshot{
		MatchID:    m.State.ID,
		Phase:      m.State.Phase,
		Turns:      m.State.Turns,
		Selected:   m.State.Selected,
		Over:       m.State.Over,
		Winner:     m.State.Winner,
		Score:      m.State.Score,
		Transition: transition,
		Timestamp:  time.Now(),
	}
	for i := range s.Cells {
		s.Cells[i] = board.NoToken
	}
	if !m.Started() {
		return s
	}
	s.Tokens = m.Board.Tokens()
	for _, c := range grid.All() {
		s.Cells[c.Index()] = m.Board.TokenAt(c)
	}
	return s
}

// Match rebuilds a playable match from the snapshot through the board's
// own mutators, so a corrupted snapshot fails instead of loading.
func (s *Snapshot) Match() (Match, error) {
	b := board.New()
	for _, t := range s.Tokens {
		id, err := b.Register(board.TokenSpec{Team: t.Team, Health: t.MaxHealth, AttackRate: t.AttackRate})
		if err != nil {
			return Match{}, fmt.Errorf("restore token %d: %w", t.ID, err)
		}
		if id != t.ID {
			return Match{}, fmt.Errorf("restore token %d: registered as %d", t.ID, id)
		}
		health := t.Health
		if _, err := b.UpdateToken(id, board.TokenPatch{Open: t.Open, Dead: t.Dead, Health: &health}); err != nil {
			return Match{}, fmt.Errorf("restore token %d: %w", t.ID, err)
		}
	}
	for i, id := range s.Cells {
		if id == board.NoToken {
			continue
		}
		if err := b.Place(id, grid.FromIndex(i)); err != nil {
			return Match{}, fmt.Errorf("restore cell %s: %w", grid.FromIndex(i), err)
		}
	}
	if err := b.CheckInvariants(); err != nil {
		return Match{}, err
	}

	return Match{
		State: MatchState{
			ID:       s.MatchID,
			Phase:    s.Phase,
			Turns:    s.Turns,
			Selected: s.Selected,
			Over:     s.Over,
			Winner:   s.Winner,
			Score:    s.Score,
		},
		Board: b,
	}, nil
}

// Checksum is a SHA-256 of the deterministic rendering of a snapshot.
// Timestamps and the producing transition are excluded, so two snapshots
// of the same position share a checksum.
type Checksum struct {
	Hash    string
	Version int
}

// ComputeChecksum hashes the snapshot.
func (s *Snapshot) ComputeChecksum() (*Checksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.buildDeterministicRepresentation())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &Checksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: 1,
	}, nil
}

// VerifyChecksum reports whether the snapshot still matches expected.
func (s *Snapshot) VerifyChecksum(expected *Checksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

func (s *Snapshot) buildDeterministicRepresentation() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "MATCH:%s|%s|%s|%d|%s|%t|%s|%d\n",
		s.MatchID,
		s.Phase,
		s.Turns.Active(),
		s.Turns.TurnNumber(),
		s.Selected,
		s.Over,
		s.Winner,
		s.Score,
	)

	// Registry order is the token id order, already deterministic.
	for _, t := range s.Tokens {
		fmt.Fprintf(&buf, "TOKEN:%d|%s|%d/%d|%d|%t|%t\n",
			t.ID, t.Team, t.Health, t.MaxHealth, t.AttackRate, t.Open, t.Dead)
	}

	buf.WriteString("CELLS:")
	for i, id := range s.Cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%d", id)
	}
	buf.WriteString("\n")

	return buf.String()
}
