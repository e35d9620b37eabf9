package server

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/thraizz/gridwar-server-go/internal/game"
)

func (s *Server) handleMessage(c *Client, msg WSMessage) {
	if s.logger != nil {
		s.logger.Debug("received message",
			zap.String("session_id", c.sessionID),
			zap.String("type", msg.Type),
		)
	}

	switch msg.Type {
	case MsgStartMatch:
		view, err := s.engine.StartMatch(c.sessionID)
		if err != nil {
			s.replyError(c, msg.Type, err)
			return
		}
		s.reply(c, MsgMatchState, view)

	case MsgClickCell:
		req, ok := s.decodeCell(c, msg)
		if !ok {
			return
		}
		view, err := s.engine.HandleCellClick(c.sessionID, req.Cell())
		if err != nil {
			s.replyError(c, msg.Type, err)
			return
		}
		s.reply(c, MsgMatchState, view)

	case MsgGetCell:
		req, ok := s.decodeCell(c, msg)
		if !ok {
			return
		}
		cell, err := s.engine.GetRenderableCell(c.sessionID, req.Cell())
		if err != nil {
			s.replyError(c, msg.Type, err)
			return
		}
		s.reply(c, MsgCell, cell)

	case MsgGetMatch:
		view, err := s.engine.MatchView(c.sessionID)
		if err != nil {
			s.replyError(c, msg.Type, err)
			return
		}
		s.reply(c, MsgMatchState, view)

	case MsgGetReplay:
		var req ReplayRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				s.reply(c, MsgError, ErrorPayload{Code: CodeBadRequest, Message: "malformed replay request", Request: msg.Type})
				return
			}
		}
		if req.Step == "" {
			req.Step = string(game.ReplayLast)
		}
		frame, err := s.engine.StepReplay(c.sessionID, game.ReplayStep(req.Step), req.Count)
		if err != nil {
			s.replyError(c, msg.Type, err)
			return
		}
		s.reply(c, MsgReplayState, frame)

	case MsgGetAnalytics:
		stats, err := s.engine.MatchAnalytics(c.sessionID)
		if err != nil {
			s.replyError(c, msg.Type, err)
			return
		}
		s.reply(c, MsgAnalytics, stats)

	default:
		s.reply(c, MsgError, ErrorPayload{
			Code:    CodeUnknownType,
			Message: "unknown message type " + msg.Type,
			Request: msg.Type,
		})
	}
}

func (s *Server) decodeCell(c *Client, msg WSMessage) (CellRequest, bool) {
	var req CellRequest
	if len(msg.Data) == 0 {
		s.reply(c, MsgError, ErrorPayload{Code: CodeBadRequest, Message: "missing cell", Request: msg.Type})
		return req, false
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.reply(c, MsgError, ErrorPayload{Code: CodeBadRequest, Message: "malformed cell", Request: msg.Type})
		return req, false
	}
	return req, true
}

func (s *Server) replyError(c *Client, request string, err error) {
	code := CodeInternal
	switch {
	case errors.Is(err, game.ErrMatchNotStarted):
		code = CodeNotStarted
	case errors.Is(err, game.ErrCellOutOfBounds):
		code = CodeOutOfBounds
	case errors.Is(err, game.ErrTooManySessions):
		code = CodeTooManySessions
	case errors.Is(err, game.ErrReplayDisabled):
		code = CodeReplayDisabled
	case errors.Is(err, game.ErrReplayEnd):
		code = CodeReplayEnd
	case errors.Is(err, game.ErrUnknownReplayStep):
		code = CodeBadRequest
	}
	if code == CodeInternal && s.logger != nil {
		s.logger.Error("request failed",
			zap.String("session_id", c.sessionID),
			zap.String("type", request),
			zap.Error(err),
		)
	}
	s.reply(c, MsgError, ErrorPayload{Code: code, Message: err.Error(), Request: request})
}
