package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/events"
	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/lock"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/state"
)

// Dispatcher runs client commands. *command.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, cmd command.Command) (command.Outcome, error)
}

// StateLoader reads the current state of a session for newly joined clients.
type StateLoader interface {
	Load(ctx context.Context, sessionID string) (*models.GameState, error)
}

// Watcher subscribes to the notifications of a session.
type Watcher interface {
	Watch(sessionID string, fn func(events.Notification) error) (bus.Subscription, error)
}

var (
	_ Dispatcher  = (*command.Dispatcher)(nil)
	_ StateLoader = (*state.Store)(nil)
	_ Watcher     = (*events.BusBroadcaster)(nil)
)

// Room is the set of clients watching one session. It holds a single bus
// subscription for as long as it has clients.
type Room struct {
	sessionID string
	sub       bus.Subscription

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func (r *Room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// fanOut encodes n once and queues it for every client of the room.
func (r *Room) fanOut(logger log.Log) func(events.Notification) error {
	return func(n events.Notification) error {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		r.mu.RLock()
		defer r.mu.RUnlock()
		for c := range r.clients {
			if !c.enqueue(data) {
				logger.Debug("dropping slow client", log.Session(r.sessionID), log.String("remote", c.remote))
			}
		}
		return nil
	}
}

type client struct {
	conn   *websocket.Conn
	remote string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{conn: conn, remote: conn.RemoteAddr().String(), send: make(chan []byte, buffer)}
}

// enqueue never blocks: a full queue closes the client.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) writePump(wait time.Duration) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// drain so enqueue keeps failing fast until close
			c.close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// WebSocketServer fans session notifications out to websocket clients and
// runs the commands they send. Clients join with /ws?session=<id>.
type WebSocketServer struct {
	watcher    Watcher
	states     StateLoader
	dispatcher Dispatcher
	cfg        Config
	logger     log.Log
	upgrader   websocket.Upgrader

	base   context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

func NewWebSocketServer(watcher Watcher, states StateLoader, dispatcher Dispatcher, cfg Config, logger log.Log) *WebSocketServer {
	if logger == nil {
		logger = log.Nop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &WebSocketServer{
		watcher:    watcher,
		states:     states,
		dispatcher: dispatcher,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(log.Component("websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		base:   base,
		cancel: cancel,
		rooms:  make(map[string]*Room),
	}
}

func (s *WebSocketServer) join(sessionID string, c *client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	room, ok := s.rooms[sessionID]
	if !ok {
		room = &Room{sessionID: sessionID, clients: make(map[*client]struct{})}
		sub, err := s.watcher.Watch(sessionID, room.fanOut(s.logger))
		if err != nil {
			return err
		}
		room.sub = sub
		s.rooms[sessionID] = room
	}
	room.mu.Lock()
	room.clients[c] = struct{}{}
	room.mu.Unlock()
	return nil
}

func (s *WebSocketServer) leave(sessionID string, c *client) {
	c.close()

	s.mu.Lock()
	room, ok := s.rooms[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	room.mu.Lock()
	delete(room.clients, c)
	empty := len(room.clients) == 0
	room.mu.Unlock()
	if empty {
		delete(s.rooms, sessionID)
	}
	s.mu.Unlock()

	if empty && room.sub != nil {
		_ = room.sub.Cancel()
	}
}

// Clients reports how many clients watch sessionID.
func (s *WebSocketServer) Clients(sessionID string) int {
	s.mu.Lock()
	room, ok := s.rooms[sessionID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return room.size()
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Session(sessionID), log.Error(err))
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()

	logger := s.logger.With(log.Session(sessionID), log.String("remote", conn.RemoteAddr().String()))
	c := newClient(conn, s.cfg.SendBuffer)
	// join before the first load so no change slips between the two
	if err := s.join(sessionID, c); err != nil {
		s.refuse(conn, websocket.CloseTryAgainLater, err.Error())
		return
	}
	defer s.leave(sessionID, c)

	gs, err := s.states.Load(s.base, sessionID)
	if err != nil {
		code := websocket.CloseInternalServerErr
		if errors.Is(err, state.ErrSessionNotFound) {
			code = websocket.ClosePolicyViolation
		}
		logger.Debug("refusing client", log.Error(err))
		s.refuse(conn, code, "unknown session")
		return
	}
	if data, err := json.Marshal(events.State(gs)); err == nil {
		c.enqueue(data)
	}

	go c.writePump(s.cfg.WriteWait)
	logger.Debug("client joined")
	s.readLoop(sessionID, c, logger)
	logger.Debug("client left")
}

func (s *WebSocketServer) refuse(conn *websocket.Conn, code int, text string) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	_ = conn.Close()
}

func (s *WebSocketServer) readLoop(sessionID string, c *client, logger log.Log) {
	c.conn.SetReadLimit(s.cfg.ReadLimit)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Debug("discarding malformed message", log.Error(err))
			s.reply(c, reply{Kind: kindError, Error: ErrInvalidMessage.Error()})
			continue
		}

		switch msg.Type {
		case msgCommand:
			s.reply(c, s.runCommand(sessionID, msg, logger))
		default:
			s.reply(c, reply{Kind: kindError, ID: msg.ID, Error: "unknown message type " + msg.Type})
		}
	}
}

func (s *WebSocketServer) runCommand(sessionID string, msg clientMessage, logger log.Log) reply {
	out, err := s.dispatcher.Dispatch(s.base, sessionID, msg.Command)
	if err != nil {
		logger.Warn("command failed", log.String("command", msg.Command.Name), log.Error(err))
		return reply{Kind: kindError, ID: msg.ID, Error: publicError(err)}
	}
	return reply{Kind: kindOutcome, ID: msg.ID, Outcome: &out}
}

// publicError is the text a client sees for an error Dispatch returned.
func publicError(err error) string {
	switch {
	case errors.Is(err, lock.ErrLockTimeout):
		return "server busy, try again"
	case errors.Is(err, state.ErrSessionNotFound):
		return "unknown session"
	default:
		return "internal error"
	}
}

func (s *WebSocketServer) reply(c *client, rep reply) {
	data, err := json.Marshal(rep)
	if err != nil {
		s.logger.Error("encode reply", log.Error(err))
		return
	}
	c.enqueue(data)
}

// Close disconnects every client and cancels in-flight commands.
func (s *WebSocketServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	rooms := s.rooms
	s.rooms = make(map[string]*Room)
	s.mu.Unlock()

	s.cancel()
	for _, room := range rooms {
		if room.sub != nil {
			_ = room.sub.Cancel()
		}
		room.mu.RLock()
		for c := range room.clients {
			// closing the socket also ends its read loop
			_ = c.conn.Close()
		}
		room.mu.RUnlock()
	}
	s.conns.Wait()
}
