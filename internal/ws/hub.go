// Package ws pushes kernel events to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

type message struct {
	kind    events.Type
	payload []byte
}

// Hub fans bus events out to connected clients.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan message
	clients    map[*client]struct{}
	done       chan struct{}
	count      int64
	logger     *zap.Logger
}

// NewHub creates a hub; call Run before serving clients.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, sendBufferSize),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			close(h.done)
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			atomic.AddInt64(&h.count, 1)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.wants(msg.kind) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	atomic.AddInt64(&h.count, -1)
	close(c.send)
	c.conn.Close()
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	return int(atomic.LoadInt64(&h.count))
}

// Publish satisfies events.Publisher so the hub can subscribe to the bus.
// Events are dropped when the broadcast buffer is full.
func (h *Hub) Publish(evt events.Event) {
	if h == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Warn("ws: failed to marshal event", zap.String("type", string(evt.Type)), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{kind: evt.Type, payload: data}:
	default:
		h.logger.Warn("ws: broadcast buffer full, event dropped", zap.String("type", string(evt.Type)))
	}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	prefix []string
}

func newClient(hub *Hub, conn *websocket.Conn, filter string) *client {
	var prefixes []string
	for _, p := range strings.Split(filter, ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &client{hub: hub, conn: conn, send: make(chan []byte, sendBufferSize), prefix: prefixes}
}

// wants matches the event type against the client's prefixes; no prefix means everything.
func (c *client) wants(kind events.Type) bool {
	if len(c.prefix) == 0 {
		return true
	}
	for _, p := range c.prefix {
		if strings.HasPrefix(string(kind), p) {
			return true
		}
	}
	return false
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
