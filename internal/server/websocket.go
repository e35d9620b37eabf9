package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/thraizz/gridwar-server-go/internal/config"
	"github.com/thraizz/gridwar-server-go/internal/game"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection. Each connection owns exactly one
// engine session.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type delivery struct {
	sessionID string
	message   []byte
}

// Hub tracks connected clients and routes engine notifications to them.
// Only run closes a client's send channel.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}
	logger     *zap.Logger
}

func newHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// run owns the client map until ctx ends. On shutdown it closes every
// connection; closing done then stops the write pumps.
func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, client := range h.clients {
				delete(h.clients, id)
				client.conn.Close()
			}
			return

		case client := <-h.register:
			h.clients[client.sessionID] = client
			if h.logger != nil {
				h.logger.Debug("client registered", zap.String("session_id", client.sessionID))
			}

		case client := <-h.unregister:
			if current, ok := h.clients[client.sessionID]; ok && current == client {
				delete(h.clients, client.sessionID)
				close(client.send)
				if h.logger != nil {
					h.logger.Debug("client unregistered", zap.String("session_id", client.sessionID))
				}
			}

		case d := <-h.deliver:
			client, ok := h.clients[d.sessionID]
			if !ok {
				continue
			}
			select {
			case client.send <- d.message:
			default:
				if h.logger != nil {
					h.logger.Warn("dropping update for slow client", zap.String("session_id", d.sessionID))
				}
			}
		}
	}
}

// Server is the local WebSocket presentation adapter over a game.Engine.
type Server struct {
	cfg         config.WebSocketConfig
	engine      *game.Engine
	logger      *zap.Logger
	hub         *Hub
	upgrader    websocket.Upgrader
	http        *http.Server
	cancel      context.CancelFunc
	eventHandle int

	mu      sync.Mutex
	closing bool
	pumps   sync.WaitGroup
}

// NewServer wires the server to the engine's notifications and events.
// Call Start or use Handler with an existing listener.
func NewServer(cfg config.WebSocketConfig, engine *game.Engine, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
		hub:    newHub(logger),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.hub.run(ctx)

	engine.SetNotificationHandler(s.handleNotification)
	s.eventHandle = engine.Events().Subscribe(s.handleEvent)
	return s
}

// Handler returns the HTTP handler serving /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// Start listens on the configured address and blocks until the server
// stops. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.logger != nil {
		s.logger.Info("starting WebSocket server", zap.String("address", s.cfg.Address))
	}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every client and waits
// for their pumps until ctx ends. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.engine.Events().Unsubscribe(s.eventHandle)

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	stopped := make(chan struct{})
	go func() {
		s.pumps.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		err = multierr.Append(err, fmt.Errorf("waiting for client pumps: %w", ctx.Err()))
	}
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	return false
}

func (s *Server) handleNotification(n game.MatchNotification) {
	s.push(MsgMatchUpdate, n.SessionID, n.View)
}

func (s *Server) handleEvent(ev rules.Event) {
	s.push(MsgMatchEvent, ev.SessionID, newEventPayload(ev))
}

// push routes a frame to the session's client through the hub. It runs
// on the engine's dispatch goroutine, so it blocks rather than drops to
// keep frames in click order.
func (s *Server) push(msgType, sessionID string, data any) {
	msg, err := encode(msgType, sessionID, data)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to encode push", zap.String("type", msgType), zap.Error(err))
		}
		return
	}
	select {
	case s.hub.deliver <- delivery{sessionID: sessionID, message: msg}:
	case <-s.hub.done:
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}

	queue := s.cfg.SendQueue
	if queue < 1 {
		queue = 1
	}
	client := &Client{
		conn:      conn,
		send:      make(chan []byte, queue),
		sessionID: uuid.NewString(),
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.pumps.Add(2)
	s.mu.Unlock()

	if !s.hub.add(client) {
		s.pumps.Add(-2)
		conn.Close()
		return
	}

	go s.writePump(client)
	go s.readPump(client)
}

func (s *Server) readPump(c *Client) {
	defer s.pumps.Done()
	defer func() {
		s.hub.remove(c)
		s.engine.CloseSession(c.sessionID)
		c.conn.Close()
	}()

	if s.cfg.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.logger != nil {
				s.logger.Debug("websocket read error",
					zap.String("session_id", c.sessionID),
					zap.Error(err),
				)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.reply(c, MsgError, ErrorPayload{Code: CodeBadRequest, Message: "malformed message"})
			continue
		}
		s.handleMessage(c, msg)
	}
}

func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer s.pumps.Done()
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.hub.done:
			return
		}
	}
}

// reply queues a message for the client. It is only called from the
// client's read loop, before the client unregisters.
func (s *Server) reply(c *Client, msgType string, data any) {
	msg, err := encode(msgType, c.sessionID, data)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to encode reply", zap.String("type", msgType), zap.Error(err))
		}
		return
	}
	select {
	case c.send <- msg:
	default:
		if s.logger != nil {
			s.logger.Warn("dropping reply for slow client",
				zap.String("session_id", c.sessionID),
				zap.String("type", msgType),
			)
		}
	}
}
