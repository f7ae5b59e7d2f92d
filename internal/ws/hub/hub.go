package hub

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/uploads"
	"github.com/kgellert/trimer-client/internal/ws"
)

var ErrConnectionClosed = errors.New("connection closed")

type Connection struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]struct{}

	mu     sync.Mutex
	closed bool
}

func (c *Connection) ID() string { return c.id }

type subscribeCmd struct {
	c     *Connection
	rooms []string
	reply chan struct{}
}

type broadcastCmd struct {
	room    string
	payload []byte
}

type Hub struct {
	log        *slog.Logger
	register   chan *Connection
	unregister chan *Connection
	subscribe  chan subscribeCmd
	broadcast  chan broadcastCmd
	rooms      map[string]map[*Connection]struct{}
	done       chan struct{}
}

func NewConnection(conn *websocket.Conn) *Connection {
	id, err := uploads.GenerateID()
	if err != nil {
		id = ""
	}
	return &Connection{
		id:    id,
		conn:  conn,
		send:  make(chan []byte, 128),
		rooms: make(map[string]struct{}),
	}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		register:   make(chan *Connection, 64),
		unregister: make(chan *Connection, 64),
		subscribe:  make(chan subscribeCmd, 64),
		broadcast:  make(chan broadcastCmd, 256),
		rooms:      make(map[string]map[*Connection]struct{}),
		done:       make(chan struct{}),
	}
}

// Run owns the room table. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, room := range h.rooms {
				for c := range room {
					c.CloseSend()
				}
			}
			h.rooms = make(map[string]map[*Connection]struct{})
			return

		case c := <-h.register:
			h.log.Debug("ws connection registered", slog.String("conn_id", c.id))

		case c := <-h.unregister:
			for name := range c.rooms {
				room := h.rooms[name]
				if room == nil {
					continue
				}
				delete(room, c)
				if len(room) == 0 {
					delete(h.rooms, name)
				}
			}
			c.CloseSend()

		case cmd := <-h.subscribe:
			for _, name := range cmd.rooms {
				room := h.rooms[name]
				if room == nil {
					room = make(map[*Connection]struct{})
					h.rooms[name] = room
				}
				room[cmd.c] = struct{}{}
				cmd.c.rooms[name] = struct{}{}
			}
			if cmd.reply != nil {
				close(cmd.reply)
			}

		case b := <-h.broadcast:
			for c := range h.rooms[b.room] {
				_ = c.Send(b.payload)
			}
		}
	}
}

func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *Hub) Register(c *Connection) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Connection) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribe adds c to rooms and waits until the hub has applied it, so
// events emitted afterwards reach the connection.
func (h *Hub) Subscribe(c *Connection, rooms []string) {
	reply := make(chan struct{})
	select {
	case h.subscribe <- subscribeCmd{c: c, rooms: rooms, reply: reply}:
	case <-h.done:
		return
	}
	select {
	case <-reply:
	case <-h.done:
	}
}

func (h *Hub) Broadcast(room string, payload []byte) {
	select {
	case h.broadcast <- broadcastCmd{room: room, payload: payload}:
	case <-h.done:
	}
}

// Emit implements ws.Emitter.
func (h *Hub) Emit(room string, t ws.EventType, payload any) {
	const op = "ws.hub.Emit"

	evt, err := ws.NewEvent(room, t, payload)
	if err != nil {
		h.log.Error("failed to encode event", slog.String("op", op), slog.String("type", string(t)), sl.Err(err))
		return
	}

	b, err := encode(evt)
	if err != nil {
		h.log.Error("failed to encode event", slog.String("op", op), slog.String("type", string(t)), sl.Err(err))
		return
	}

	h.Broadcast(room, b)
}

// Send queues b for the connection and drops it when the buffer is full.
// It returns ErrConnectionClosed once CloseSend has run.
func (c *Connection) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- b:
	default:
	}
	return nil
}

func (c *Connection) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
