package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrAlreadyExists = errors.New("client already exists")
	ErrNotFound      = errors.New("client not found")
)

const writeWait = 10 * time.Second

// Conn is the write half of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	id        string
	conn      Conn
	sendQueue chan []byte
	rooms     map[string]struct{}
}

// Hub fans out room events to subscribed clients. Every client owns a single
// writer goroutine draining its send queue, so messages reach a client in the
// order they were enqueued.
type Hub struct {
	logger    *slog.Logger
	queueSize int

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client
}

func New(queueSize int, logger *slog.Logger) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}

	return &Hub{
		logger:    logger,
		queueSize: queueSize,
		clients:   make(map[string]*client),
		rooms:     make(map[string]map[string]*client),
	}
}

func (h *Hub) Register(id string, conn Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[id]; ok {
		return ErrAlreadyExists
	}

	c := &client{
		id:        id,
		conn:      conn,
		sendQueue: make(chan []byte, h.queueSize),
		rooms:     make(map[string]struct{}),
	}
	h.clients[id] = c

	go h.writeLoop(c)

	return nil
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.sendQueue {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Info("failed to write message", "client_id", c.id, "error", err)
			h.drop(c.id)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Unregister removes the client from every room and stops its writer after
// already queued messages are flushed.
func (h *Hub) Unregister(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.unregisterLocked(id)
}

func (h *Hub) unregisterLocked(id string) error {
	c, ok := h.clients[id]
	if !ok {
		return ErrNotFound
	}

	for room := range c.rooms {
		h.leaveLocked(room, c)
	}
	delete(h.clients, id)
	close(c.sendQueue)

	return nil
}

// drop unregisters a client that can no longer keep up and closes its
// connection so the reader side notices.
func (h *Hub) drop(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		h.unregisterLocked(id)
	}
	h.mu.Unlock()

	if ok {
		c.conn.Close()
	}
}

func (h *Hub) Subscribe(room, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return ErrNotFound
	}

	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[string]*client)
		h.rooms[room] = subs
	}
	subs[id] = c
	c.rooms[room] = struct{}{}

	return nil
}

func (h *Hub) Unsubscribe(room, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return ErrNotFound
	}

	h.leaveLocked(room, c)
	return nil
}

func (h *Hub) leaveLocked(room string, c *client) {
	delete(c.rooms, room)
	if subs, ok := h.rooms[room]; ok {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// CloseRoom unsubscribes every listener of the room.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.rooms[room] {
		delete(c.rooms, room)
	}
	delete(h.rooms, room)
}

func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

func (h *Hub) IsSubscribed(room, id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.rooms[room][id]
	return ok
}

// Publish delivers v to every subscriber of room.
func (h *Hub) Publish(room string, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	var slow []string

	h.mu.RLock()
	for id, c := range h.rooms[room] {
		select {
		case c.sendQueue <- msg:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.logger.Warn("dropping slow client", "client_id", id, "room", room)
		h.drop(id)
	}

	return nil
}

// SendTo delivers v to a single client.
func (h *Hub) SendTo(id string, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	h.mu.RLock()
	c, ok := h.clients[id]
	if !ok {
		h.mu.RUnlock()
		return ErrNotFound
	}

	select {
	case c.sendQueue <- msg:
		h.mu.RUnlock()
		return nil
	default:
		h.mu.RUnlock()
	}

	h.logger.Warn("dropping slow client", "client_id", id)
	h.drop(id)
	return ErrNotFound
}
