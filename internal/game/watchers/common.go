package watchers

import (
	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

// Keys of the standard match watchers.
const (
	KeyTokensDied     = "TokensDiedWatcher"
	KeyDamageDealt    = "DamageDealtWatcher"
	KeyTokensRevealed = "TokensRevealedWatcher"
	KeyTokensMoved    = "TokensMovedWatcher"
)

// TokensDiedWatcher tracks tokens that died, by the team that lost them.
type TokensDiedWatcher struct {
	*rules.BaseWatcher
	diedByTeam map[board.Team]int
	tokens     []board.TokenID
}

// NewTokensDiedWatcher creates a new tokens died watcher.
func NewTokensDiedWatcher() *TokensDiedWatcher {
	return &TokensDiedWatcher{
		BaseWatcher: rules.NewBaseWatcher(KeyTokensDied),
		diedByTeam:  make(map[board.Team]int),
	}
}

// Watch implements the Watcher interface.
func (w *TokensDiedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventTokenDied {
		return
	}
	w.diedByTeam[event.Team]++
	w.tokens = append(w.tokens, event.TokenID)
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *TokensDiedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.diedByTeam = make(map[board.Team]int)
	w.tokens = nil
}

// GetAmountByTeam returns how many tokens the team lost.
func (w *TokensDiedWatcher) GetAmountByTeam(team board.Team) int {
	return w.diedByTeam[team]
}

// GetTotalAmount returns the total number of tokens that died.
func (w *TokensDiedWatcher) GetTotalAmount() int {
	return len(w.tokens)
}

// GetTokens returns the dead tokens in order of death.
func (w *TokensDiedWatcher) GetTokens() []board.TokenID {
	return append([]board.TokenID(nil), w.tokens...)
}

// DamageDealtWatcher tracks damage dealt and attacks made by each team.
type DamageDealtWatcher struct {
	*rules.BaseWatcher
	damageByTeam  map[board.Team]int
	attacksByTeam map[board.Team]int
}

// NewDamageDealtWatcher creates a new damage dealt watcher.
func NewDamageDealtWatcher() *DamageDealtWatcher {
	return &DamageDealtWatcher{
		BaseWatcher:   rules.NewBaseWatcher(KeyDamageDealt),
		damageByTeam:  make(map[board.Team]int),
		attacksByTeam: make(map[board.Team]int),
	}
}

// Watch implements the Watcher interface.
func (w *DamageDealtWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventTokenAttacked {
		return
	}
	w.damageByTeam[event.Team] += event.Amount
	w.attacksByTeam[event.Team]++
	if event.Amount > 0 {
		w.SetCondition(true)
	}
}

// Reset clears the watcher's state.
func (w *DamageDealtWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.damageByTeam = make(map[board.Team]int)
	w.attacksByTeam = make(map[board.Team]int)
}

// GetDamage returns the total damage the team dealt.
func (w *DamageDealtWatcher) GetDamage(team board.Team) int {
	return w.damageByTeam[team]
}

// GetAttacks returns how many attacks the team made.
func (w *DamageDealtWatcher) GetAttacks(team board.Team) int {
	return w.attacksByTeam[team]
}

// TokensRevealedWatcher tracks tokens opened by each team's reveals.
type TokensRevealedWatcher struct {
	*rules.BaseWatcher
	revealedByTeam map[board.Team]int
}

// NewTokensRevealedWatcher creates a new tokens revealed watcher.
func NewTokensRevealedWatcher() *TokensRevealedWatcher {
	return &TokensRevealedWatcher{
		BaseWatcher:    rules.NewBaseWatcher(KeyTokensRevealed),
		revealedByTeam: make(map[board.Team]int),
	}
}

// Watch implements the Watcher interface.
func (w *TokensRevealedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventTokenRevealed {
		return
	}
	w.revealedByTeam[event.Team]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *TokensRevealedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.revealedByTeam = make(map[board.Team]int)
}

// GetCount returns how many tokens the team's reveals opened.
func (w *TokensRevealedWatcher) GetCount(team board.Team) int {
	return w.revealedByTeam[team]
}

// TokensMovedWatcher counts moves per team.
type TokensMovedWatcher struct {
	*rules.BaseWatcher
	movesByTeam map[board.Team]int
}

// NewTokensMovedWatcher creates a new tokens moved watcher.
func NewTokensMovedWatcher() *TokensMovedWatcher {
	return &TokensMovedWatcher{
		BaseWatcher: rules.NewBaseWatcher(KeyTokensMoved),
		movesByTeam: make(map[board.Team]int),
	}
}

// Watch implements the Watcher interface.
func (w *TokensMovedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventTokenMoved {
		return
	}
	w.movesByTeam[event.Team]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *TokensMovedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.movesByTeam = make(map[board.Team]int)
}

// GetCount returns how many moves the team made.
func (w *TokensMovedWatcher) GetCount(team board.Team) int {
	return w.movesByTeam[team]
}

// NewMatchRegistry returns a registry holding one of each standard
// watcher. Reset it between matches instead of building a new one.
func NewMatchRegistry() *rules.WatcherRegistry {
	registry := rules.NewWatcherRegistry()
	registry.AddWatcher(NewTokensDiedWatcher())
	registry.AddWatcher(NewDamageDealtWatcher())
	registry.AddWatcher(NewTokensRevealedWatcher())
	registry.AddWatcher(NewTokensMovedWatcher())
	return registry
}

// TeamStats is a per-team summary read from a match registry.
type TeamStats struct {
	Revealed int `json:"revealed"`
	Moves    int `json:"moves"`
	Attacks  int `json:"attacks"`
	Damage   int `json:"damage"`
	Lost     int `json:"lost"`
}

// Summarize reads the standard watchers of a registry built by
// NewMatchRegistry. Missing watchers contribute zeros.
func Summarize(registry *rules.WatcherRegistry) map[board.Team]TeamStats {
	out := make(map[board.Team]TeamStats, len(board.Teams))
	for _, team := range board.Teams {
		var s TeamStats
		if w, ok := registry.GetWatcher(KeyTokensRevealed).(*TokensRevealedWatcher); ok {
			s.Revealed = w.GetCount(team)
		}
		if w, ok := registry.GetWatcher(KeyTokensMoved).(*TokensMovedWatcher); ok {
			s.Moves = w.GetCount(team)
		}
		if w, ok := registry.GetWatcher(KeyDamageDealt).(*DamageDealtWatcher); ok {
			s.Attacks = w.GetAttacks(team)
			s.Damage = w.GetDamage(team)
		}
		if w, ok := registry.GetWatcher(KeyTokensDied).(*TokensDiedWatcher); ok {
			s.Lost = w.GetAmountByTeam(team)
		}
		out[team] = s
	}
	return out
}
