package game

import (
	"sync"

	"go.uber.org/zap"
)

// Replay is the in-memory history of one match: one snapshot per click
// that changed the position. It is dropped with the session and never
// written anywhere. CurrentIndex is the state last returned by a
// navigation call.
type Replay struct {
	MatchID      string
	States       []*Snapshot
	CurrentIndex int
	limit        int
	lastHash     string
	mu           sync.RWMutex
}

// NewReplay creates an empty replay. limit <= 0 means unbounded.
func NewReplay(matchID string, limit int) *Replay {
	return &Replay{
		MatchID: matchID,
		States:  make([]*Snapshot, 0),
		limit:   limit,
	}
}

// RecordState appends a snapshot unless it has the same checksum as the
// previous one. It reports whether the snapshot was kept.
func (r *Replay) RecordState(snapshot *Snapshot) (bool, error) {
	sum, err := snapshot.ComputeChecksum()
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sum.Hash == r.lastHash {
		return false, nil
	}
	r.lastHash = sum.Hash
	r.States = append(r.States, snapshot)
	if r.limit > 0 && len(r.States) > r.limit {
		drop := len(r.States) - r.limit
		r.States = append([]*Snapshot(nil), r.States[drop:]...)
		r.CurrentIndex -= drop
		if r.CurrentIndex < 0 {
			r.CurrentIndex = 0
		}
	}
	return true, nil
}

// Start moves the cursor to the first state and returns it.
func (r *Replay) Start() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
	if len(r.States) == 0 {
		return nil
	}
	return r.States[0]
}

// Next advances the cursor and returns that state, or nil at the end.
func (r *Replay) Next() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex+1 < len(r.States) {
		r.CurrentIndex++
		return r.States[r.CurrentIndex]
	}
	return nil
}

// Previous steps the cursor back and returns that state, or nil at the
// start.
func (r *Replay) Previous() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.States[r.CurrentIndex]
	}
	return nil
}

// Skip moves the cursor by count, clamped to the recorded range.
func (r *Replay) Skip(count int) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.States) == 0 {
		return nil
	}
	newIndex := r.CurrentIndex + count
	if newIndex >= len(r.States) {
		newIndex = len(r.States) - 1
	}
	if newIndex < 0 {
		newIndex = 0
	}

	r.CurrentIndex = newIndex
	return r.States[r.CurrentIndex]
}

// Seek moves the cursor to index. Out of range leaves it alone and
// returns nil.
func (r *Replay) Seek(index int) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.States) {
		return nil
	}
	r.CurrentIndex = index
	return r.States[index]
}

// Position returns the cursor.
func (r *Replay) Position() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.CurrentIndex
}

// Size returns the number of recorded states.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.States)
}

// GetStateAt returns the state at index, or nil.
func (r *Replay) GetStateAt(index int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.States) {
		return r.States[index]
	}
	return nil
}

// Last returns the most recent state, or nil.
func (r *Replay) Last() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

// recordReplay records into replay and logs failures; recording never
// blocks a click.
func recordReplay(logger *zap.Logger, replay *Replay, m Match, transition Transition) {
	if replay == nil {
		return
	}
	kept, err := replay.RecordState(TakeSnapshot(m, transition))
	if err != nil {
		if logger != nil {
			logger.Warn("failed to record replay state",
				zap.String("match_id", m.State.ID),
				zap.Error(err),
			)
		}
		return
	}
	if kept && logger != nil {
		logger.Debug("recorded replay state",
			zap.String("match_id", m.State.ID),
			zap.String("transition", transition.String()),
			zap.Int("state_count", replay.Size()),
		)
	}
}
