package server

import (
	"encoding/json"

	"github.com/thraizz/gridwar-server-go/internal/game/grid"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

// Inbound message types.
const (
	MsgStartMatch   = "start_match"
	MsgClickCell    = "click_cell"
	MsgGetCell      = "get_cell"
	MsgGetMatch     = "get_match"
	MsgGetReplay    = "get_replay"
	MsgGetAnalytics = "get_analytics"
)

// Outbound message types.
const (
	MsgMatchState  = "match_state"
	MsgCell        = "cell"
	MsgError       = "error"
	MsgMatchUpdate = "match_update"
	MsgMatchEvent  = "match_event"
	MsgReplayState = "replay_state"
	MsgAnalytics   = "analytics"
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CellRequest addresses one cell in click_cell and get_cell.
type CellRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (r CellRequest) Cell() grid.Cell {
	return grid.Cell{Row: r.Row, Col: r.Col}
}

// ReplayRequest moves the replay cursor: step is one of start, next,
// previous, skip (by count), seek (to count) or last.
type ReplayRequest struct {
	Step  string `json:"step"`
	Count int    `json:"count,omitempty"`
}

// EventPayload is the data of a match_event frame. Token and Source are
// -1 when the event has none.
type EventPayload struct {
	Type    string    `json:"type"`
	MatchID string    `json:"match_id"`
	Team    string    `json:"team"`
	Token   int       `json:"token"`
	Source  int       `json:"source"`
	From    grid.Cell `json:"from"`
	To      grid.Cell `json:"to"`
	Amount  int       `json:"amount,omitempty"`
}

func newEventPayload(ev rules.Event) EventPayload {
	return EventPayload{
		Type:    string(ev.Type),
		MatchID: ev.MatchID,
		Team:    ev.Team.String(),
		Token:   int(ev.TokenID),
		Source:  int(ev.SourceID),
		From:    ev.From,
		To:      ev.To,
		Amount:  ev.Amount,
	}
}

// ErrorPayload is the data of an error reply.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

// Error codes sent to clients.
const (
	CodeBadRequest      = "bad_request"
	CodeUnknownType     = "unknown_type"
	CodeNotStarted      = "match_not_started"
	CodeOutOfBounds     = "cell_out_of_bounds"
	CodeTooManySessions = "too_many_sessions"
	CodeReplayDisabled  = "replay_disabled"
	CodeReplayEnd       = "replay_end"
	CodeInternal        = "internal"
)

func encode(msgType, sessionID string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, SessionID: sessionID, Data: raw})
}
