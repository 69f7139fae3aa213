// Package hub fans engine snapshots out to websocket subscribers. The
// overlay, the web dashboard, and any other live consumer attach here and
// receive the same messages; polling the JSON API remains a valid fallback.
package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Message type tags shared with all front ends.
const (
	TypeSnapshot = "snapshot"
	TypeTimers   = "timers"
	TypeKill     = "kill"
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// enqueue drops the message when the client's buffer is full; a consumer
// that cannot keep up gets disconnected rather than stalling the rest.
func (c *client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- b:
		return true
	default:
		return false
	}
}

type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends a typed message to every connected client.
func (h *Hub) Broadcast(msgType string, data any) {
	b, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("marshal broadcast")
		return
	}

	h.mu.Lock()
	for c := range h.clients {
		if !c.enqueue(b) {
			c.close()
			delete(h.clients, c)
		}
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	c := newClient(conn)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) writePump(c *client) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer h.remove(c)

	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; clients are read-only consumers. It
// exists to process control frames and detect closes.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
