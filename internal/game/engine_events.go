package game

import (
	"fmt"
	"time"

	"github.com/thraizz/gridwar-server-go/internal/game/board"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

// buildEvents turns a click outcome into bus events, in the order they
// happened. m is the match after the click.
func buildEvents(m Match, out Outcome) []rules.Event {
	id := m.State.ID
	var events []rules.Event

	switch out.Transition {
	case TransitionSelect, TransitionReselect:
		ev := rules.NewEvent(rules.EventTokenSelected, id, out.Team, m.Board.TokenAt(out.Cell))
		ev.From, ev.To = out.From, out.Cell
		events = append(events, ev)
		return events

	case TransitionDeselect:
		ev := rules.NewEvent(rules.EventTokenDeselected, id, out.Team, m.Board.TokenAt(out.From))
		ev.From = out.From
		events = append(events, ev)
		return events

	case TransitionReveal:
		if out.Deselected {
			ev := rules.NewEvent(rules.EventTokenDeselected, id, out.Team, m.Board.TokenAt(out.From))
			ev.From = out.From
			events = append(events, ev)
		}
		for _, tid := range out.Revealed {
			ev := rules.NewEvent(rules.EventTokenRevealed, id, out.Team, tid)
			ev.To, _ = m.Board.CellOf(tid)
			ev.Amount = len(out.Revealed)
			events = append(events, ev)
		}

	case TransitionMove:
		ev := rules.NewEvent(rules.EventTokenMoved, id, out.Team, out.Mover)
		ev.From, ev.To = out.From, out.Cell
		events = append(events, ev)

	case TransitionAttack:
		ev := rules.NewEvent(rules.EventTokenAttacked, id, out.Team, out.Defender.ID)
		ev.SourceID = out.Attacker
		ev.From, ev.To = out.From, out.Cell
		ev.Amount = out.Damage
		events = append(events, ev)
		if out.Killed {
			died := rules.NewEvent(rules.EventTokenDied, id, out.Defender.Team, out.Defender.ID)
			died.SourceID = out.Attacker
			died.To = out.Cell
			events = append(events, died)
		}

	default:
		return nil
	}

	turn := rules.NewEvent(rules.EventTurnChanged, id, out.NextTurn, board.NoToken)
	turn.Amount = m.State.Turns.TurnNumber()
	events = append(events, turn)

	if out.MatchOver {
		events = append(events, rules.NewEvent(rules.EventMatchOver, id, out.Winner, board.NoToken))
	}
	return events
}

// buildMessages renders the match log lines for a click.
func buildMessages(m Match, out Outcome, now time.Time) []MatchMessage {
	line := func(kind, format string, args ...any) MatchMessage {
		return MatchMessage{Text: fmt.Sprintf(format, args...), Kind: kind, Timestamp: now}
	}

	var msgs []MatchMessage
	switch out.Transition {
	case TransitionReveal:
		msgs = append(msgs, line("reveal", "%s revealed %d token(s) around %s", out.Team, len(out.Revealed), out.Cell))
	case TransitionMove:
		msgs = append(msgs, line("move", "%s moved %s to %s", out.Team, out.From, out.Cell))
	case TransitionAttack:
		msgs = append(msgs, line("attack", "%s attacked %s from %s for %d damage", out.Team, out.Cell, out.From, out.Damage))
		if out.Killed {
			msgs = append(msgs, line("death", "%s token at %s died", out.Defender.Team, out.Cell))
		} else {
			msgs = append(msgs, line("attack", "%s token at %s has %d/%d health left",
				out.Defender.Team, out.Cell, out.Defender.Health, out.Defender.MaxHealth))
		}
	default:
		// Selection changes are not logged.
		return nil
	}

	if out.MatchOver {
		msgs = append(msgs, line("game_over", "%s wins, score %d", out.Winner, m.State.Score))
	}
	return msgs
}
